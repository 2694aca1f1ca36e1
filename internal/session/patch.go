package session

// Patch is a shallow merge. Nil fields are left untouched; slice fields
// replace the stored slice entirely.
type Patch struct {
	State            *State
	TermsAccepted    *bool
	JobPosition      *string
	CVProcessed      *bool
	ProcessingCV     *bool
	LastDocumentID   *string
	Questions        *[]string
	Answers          *[]*InterviewAnswer
	CurrentQuestion  *int
	LastPDFURL       *string
	PreviousAnalysis *string
	SelectedPackage  *string
	PackagePrice     *int
	PackageReviews   *int
	SelectedAdvisory *string
}

// Ptr returns a pointer to v, for building patches inline.
func Ptr[T any](v T) *T {
	return &v
}

// To is shorthand for a patch that only moves the state.
func To(state State) Patch {
	return Patch{State: &state}
}

func (p Patch) apply(s *Session) {
	if p.State != nil {
		s.State = *p.State
	}
	if p.TermsAccepted != nil {
		s.TermsAccepted = *p.TermsAccepted
	}
	if p.JobPosition != nil {
		s.JobPosition = *p.JobPosition
	}
	if p.CVProcessed != nil {
		s.CVProcessed = *p.CVProcessed
	}
	if p.ProcessingCV != nil {
		s.ProcessingCV = *p.ProcessingCV
	}
	if p.LastDocumentID != nil {
		s.LastDocumentID = *p.LastDocumentID
	}
	if p.Questions != nil {
		s.Questions = append([]string{}, (*p.Questions)...)
	}
	if p.Answers != nil {
		s.Answers = append([]*InterviewAnswer{}, (*p.Answers)...)
	}
	if p.CurrentQuestion != nil {
		s.CurrentQuestion = *p.CurrentQuestion
	}
	if p.LastPDFURL != nil {
		s.LastPDFURL = *p.LastPDFURL
	}
	if p.PreviousAnalysis != nil {
		s.PreviousAnalysis = *p.PreviousAnalysis
	}
	if p.SelectedPackage != nil {
		s.SelectedPackage = *p.SelectedPackage
	}
	if p.PackagePrice != nil {
		s.PackagePrice = *p.PackagePrice
	}
	if p.PackageReviews != nil {
		s.PackageReviews = *p.PackageReviews
	}
	if p.SelectedAdvisory != nil {
		s.SelectedAdvisory = *p.SelectedAdvisory
	}
}
