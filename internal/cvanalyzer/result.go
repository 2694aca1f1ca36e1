package cvanalyzer

// Result mirrors the analyzer service's JSON response.
type Result struct {
	Success           bool       `json:"success"`
	Error             string     `json:"error,omitempty"`
	Score             int        `json:"score"`
	Summary           string     `json:"summary"`
	BasicInfo         BasicInfo  `json:"basicInfo"`
	Experience        Experience `json:"experience"`
	Skills            []string   `json:"skills"`
	MissingSkills     []string   `json:"missingSkills"`
	SkillsSuggestions string     `json:"skillsSuggestions"`
	Recommendations   []string   `json:"recommendations"`
}

type BasicInfo struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Location     string `json:"location"`
	LinkedIn     string `json:"linkedin"`
	Completeness int    `json:"completeness"`
	Suggestions  string `json:"suggestions"`
}

type Experience struct {
	Years       string   `json:"years"`
	Companies   []string `json:"companies"`
	Roles       []string `json:"roles"`
	Quality     int      `json:"quality"`
	Suggestions string   `json:"suggestions"`
}

// Normalize clamps scores into their documented ranges.
func (r *Result) Normalize() {
	if r == nil {
		return
	}
	r.Score = clamp(r.Score, 1, 10)
	r.Experience.Quality = clamp(r.Experience.Quality, 1, 10)
	r.BasicInfo.Completeness = clamp(r.BasicInfo.Completeness, 0, 100)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
