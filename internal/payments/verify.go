package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"cvbot-backend/internal/llm"
	"cvbot-backend/internal/shared/metrics"
	"cvbot-backend/internal/shared/telemetry"
	"cvbot-backend/internal/shared/util"
)

// Reason explains why a screenshot was rejected.
type Reason string

const (
	ReasonNone           Reason = ""
	ReasonUnreadable     Reason = "unreadable"
	ReasonNotAReceipt    Reason = "not_a_receipt"
	ReasonNameMismatch   Reason = "name_mismatch"
	ReasonAmountMismatch Reason = "amount_mismatch"
)

// Receipt is what the vision model extracted from a screenshot.
type Receipt struct {
	IsValid       bool    `json:"isValid"`
	RecipientName string  `json:"recipientName"`
	Amount        float64 `json:"-"`
	Date          string  `json:"date"`
}

// UnmarshalJSON accepts the amount as a number or as text like "S/ 10.00".
func (r *Receipt) UnmarshalJSON(data []byte) error {
	type alias Receipt
	aux := struct {
		*alias
		Amount any `json:"amount"`
	}{alias: (*alias)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.Amount = parseAmount(aux.Amount)
	return nil
}

// Verification is the outcome of checking one screenshot.
type Verification struct {
	Valid bool
	// Override is set when the lenient raw-text rule accepted a receipt the
	// model flagged as invalid.
	Override bool
	Reason   Reason
	Receipt  Receipt
}

// Verifier checks payment screenshots against the expected payee and amount.
type Verifier struct {
	LLM       llm.Client
	PayeeName string
}

func NewVerifier(client llm.Client, payee string) *Verifier {
	if client == nil {
		client = llm.PlaceholderClient{}
	}
	return &Verifier{LLM: client, PayeeName: strings.TrimSpace(payee)}
}

const receiptPrompt = `Analiza esta captura de pantalla de un pago (Yape, Plin o transferencia bancaria).
Responde solo con JSON: {"isValid": true|false, "recipientName": "<nombre del destinatario>", "amount": <monto numérico>, "date": "<fecha>"}.
isValid es true solo si la imagen es un comprobante de pago real y completado.`

// Verify checks image against the expected amount. Provider failures come
// back as an unreadable verification, never as an error.
func (v *Verifier) Verify(ctx context.Context, image []byte, mimeType string, expected int) Verification {
	raw, err := v.LLM.DescribeImage(ctx, receiptPrompt, image, mimeType)
	if err != nil {
		telemetry.Warn("payments.vision_failed", map[string]any{"error": err})
		metrics.IncPayment("rejected")
		return Verification{Reason: ReasonUnreadable}
	}

	var receipt Receipt
	decodeErr := llm.DecodeJSON(raw, &receipt)
	out := v.judge(receipt, decodeErr == nil, expected)
	if !out.Valid && v.lenientMatch(raw, expected) {
		out = Verification{Valid: true, Override: true, Receipt: receipt}
	}

	result := "rejected"
	switch {
	case out.Override:
		result = "override"
	case out.Valid:
		result = "verified"
	}
	metrics.IncPayment(result)
	telemetry.Info("payments.verified", map[string]any{
		"result":    result,
		"reason":    string(out.Reason),
		"expected":  expected,
		"amount":    receipt.Amount,
		"recipient": receipt.RecipientName,
	})
	return out
}

func (v *Verifier) judge(r Receipt, decoded bool, expected int) Verification {
	out := Verification{Receipt: r}
	switch {
	case !decoded:
		out.Reason = ReasonUnreadable
	case !r.IsValid:
		out.Reason = ReasonNotAReceipt
	case !v.nameMatches(r.RecipientName):
		out.Reason = ReasonNameMismatch
	case math.Abs(r.Amount-float64(expected)) > 0.01:
		out.Reason = ReasonAmountMismatch
	default:
		out.Valid = true
	}
	return out
}

// nameMatches accepts the full payee name or, since wallets abbreviate and
// mask names, at least two of its parts.
func (v *Verifier) nameMatches(recipient string) bool {
	if v.PayeeName == "" {
		return true
	}
	got := util.FoldText(recipient)
	if got == "" {
		return false
	}
	want := util.FoldText(v.PayeeName)
	if strings.Contains(got, want) {
		return true
	}
	parts := strings.Fields(want)
	needed := 2
	if len(parts) < needed {
		needed = len(parts)
	}
	found := 0
	for _, part := range parts {
		if strings.Contains(got, part) {
			found++
		}
	}
	return needed > 0 && found >= needed
}

// lenientMatch accepts a screenshot when the raw model output mentions both
// the payee name and the expected price.
func (v *Verifier) lenientMatch(raw string, expected int) bool {
	if v.PayeeName == "" || expected <= 0 {
		return false
	}
	text := util.FoldText(raw)
	if !strings.Contains(text, util.FoldText(v.PayeeName)) {
		return false
	}
	return strings.Contains(raw, strconv.Itoa(expected))
}

// parseAmount reads 10, 10.5, "10", "S/ 10.00", "10,00", "1.234,56" or
// "1,234.56".
func parseAmount(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case string:
		return parseAmountText(x)
	}
	return 0
}

// parseAmountText treats the last separator as the decimal point unless
// exactly three digits follow it; every other separator groups thousands.
func parseAmountText(s string) float64 {
	clean := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' {
			return r
		}
		return -1
	}, s)
	clean = strings.Trim(clean, ".,")
	if clean == "" {
		return 0
	}
	whole, frac := clean, ""
	if i := strings.LastIndexAny(clean, ".,"); i >= 0 && len(clean)-i-1 != 3 {
		whole, frac = clean[:i], clean[i+1:]
	}
	num := strings.NewReplacer(".", "", ",", "").Replace(whole)
	if frac != "" {
		num += "." + frac
	}
	f, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	return f
}

// MismatchMessage is the user-facing explanation for a rejected screenshot.
func MismatchMessage(v Verification, payee, price string) string {
	switch v.Reason {
	case ReasonNameMismatch:
		return fmt.Sprintf("❌ El pago no parece dirigido a *%s*. Verifica el destinatario y envía una nueva captura.", payee)
	case ReasonAmountMismatch:
		return fmt.Sprintf("❌ El monto del comprobante no coincide con *%s*. Envía la captura del pago correcto.", price)
	case ReasonNotAReceipt:
		return "❌ La imagen no parece un comprobante de pago completado. Envía una captura clara del pago."
	default:
		return "❌ No pude leer el comprobante. Envía una captura más nítida del pago."
	}
}
