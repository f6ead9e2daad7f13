package assistant

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/zhouzirui/z-pharmacy/backend/internal/analysis/normalize"
	"github.com/zhouzirui/z-pharmacy/backend/internal/model/catalog"
	"github.com/zhouzirui/z-pharmacy/backend/internal/service/resolver"
	"github.com/zhouzirui/z-pharmacy/backend/internal/service/session"
)

// ErrUnreadablePrescription is returned for uploads that carry no readable text.
var ErrUnreadablePrescription = errors.New("prescription has no readable text")

// MaxPrescriptionBytes bounds the text scanned from an upload.
const MaxPrescriptionBytes = 1 << 20

// PrescriptionRequest is an uploaded prescription document.
type PrescriptionRequest struct {
	SessionID string
	UserID    string
	Filename  string
	Content   []byte
}

// PrescriptionResult lists the catalog products matched in a prescription.
type PrescriptionResult struct {
	Products []catalog.Product `json:"products"`
	Message  string            `json:"message"`
}

const (
	prescriptionFound   = "Prescription processed successfully. We found these matches:"
	prescriptionNoMatch = "Prescription processed, but none of the medicines on it are in our catalog."
)

// SubmitPrescription matches the document's text against the catalog and seeds the
// session's search candidates with the result, as a new search would.
func (e *Engine) SubmitPrescription(ctx context.Context, req PrescriptionRequest) (PrescriptionResult, error) {
	content := req.Content
	if len(content) > MaxPrescriptionBytes {
		content = content[:MaxPrescriptionBytes]
	}
	if !utf8.Valid(content) || strings.TrimSpace(string(content)) == "" {
		return PrescriptionResult{}, fmt.Errorf("%s: %w", filepath.Base(req.Filename), ErrUnreadablePrescription)
	}
	text := normalize.Correct(string(content), e.protected()...)

	var result PrescriptionResult
	err := e.sessions.With(ctx, session.Key(req.SessionID, req.UserID), func(state *session.Context) error {
		found, err := e.finder.Find(ctx, text)
		if err != nil {
			return err
		}
		found = resolver.DropFixtures(found)
		state.NewSearch(found, 1)

		result.Products = found
		if len(found) == 0 {
			result.Message = prescriptionNoMatch
			return nil
		}
		var b strings.Builder
		b.WriteString(prescriptionFound)
		for i, p := range found {
			fmt.Fprintf(&b, "\n%d. %s", i+1, p.Name)
		}
		result.Message = b.String()
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return PrescriptionResult{}, err
		}
		e.metrics.StoreError()
		e.logger.Error().Err(err).Str("session", req.SessionID).Msg("prescription lookup failed")
		return PrescriptionResult{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	e.logger.Info().Str("session", req.SessionID).Int("matches", len(result.Products)).Msg("prescription processed")
	return result, nil
}
