package delivery

import (
	"context"
	"fmt"
	"sync"

	"github.com/MG177/certificate-generator-v2-sub000/internal/domain"
	"github.com/MG177/certificate-generator-v2-sub000/internal/pkg/logger"
	"github.com/MG177/certificate-generator-v2-sub000/internal/validation"
)

// ParticipantError pairs a participant with the message shown for their
// failed send.
type ParticipantError struct {
	CertificationID string `json:"certification_id"`
	Name            string `json:"name"`
	Email           string `json:"email"`
	Message         string `json:"message"`
}

// BulkResult summarizes a bulk send. Success means at least one email went
// out; per-participant failures are detail, not verdict.
type BulkResult struct {
	Success  bool               `json:"success"`
	Total    int                `json:"total"`
	Sent     int                `json:"sent"`
	Failed   int                `json:"failed"`
	Skipped  int                `json:"skipped"`
	Errors   []ParticipantError `json:"errors,omitempty"`
	Warnings []string           `json:"warnings,omitempty"`
}

// BulkSend emails the selected participants of the event, or every
// participant when certificationIDs is empty. Participants without a usable
// address are skipped silently (counted, not errored, matching the
// validation warning); unknown certification ids are reported as failures.
// Sends run in batches to bound SMTP concurrency, with a pacing delay
// between batches. One failed participant never aborts the rest.
func (s *Service) BulkSend(ctx context.Context, eventID string, certificationIDs []string) (*BulkResult, error) {
	event, err := s.events.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}

	selected := event.Participants
	var missing []string
	if len(certificationIDs) > 0 {
		byID := make(map[string]domain.Participant, len(event.Participants))
		for _, p := range event.Participants {
			byID[p.CertificationID] = p
		}
		selected = nil
		for _, id := range certificationIDs {
			if p, found := byID[id]; found {
				selected = append(selected, p)
			} else {
				missing = append(missing, id)
			}
		}
	}

	vr := validation.ForBulkSend(event, selected)
	if !vr.IsValid {
		msg := "bulk send blocked"
		if len(vr.Errors) > 0 {
			msg = vr.Errors[0].UserMessage
		}
		return &BulkResult{
			Total:    len(selected) + len(missing),
			Skipped:  len(selected),
			Failed:   len(missing),
			Warnings: vr.Warnings,
			Errors:   []ParticipantError{{Message: msg}},
		}, nil
	}

	var targets []domain.Participant
	for _, p := range selected {
		if !validation.EmailAddress(p.Email).IsValid {
			continue
		}
		targets = append(targets, p)
	}

	result := &BulkResult{
		Total:    len(selected) + len(missing),
		Skipped:  len(selected) - len(targets),
		Warnings: vr.Warnings,
	}
	for _, id := range missing {
		result.Failed++
		result.Errors = append(result.Errors, ParticipantError{
			CertificationID: id,
			Message:         "participant not found",
		})
	}

	logger.Info("bulk send started", "event_id", eventID,
		"targets", fmt.Sprint(len(targets)), "skipped", fmt.Sprint(result.Skipped))

	var mu sync.Mutex
	for start := 0; start < len(targets); start += s.batchSize {
		if ctx.Err() != nil {
			break
		}
		end := start + s.batchSize
		if end > len(targets) {
			end = len(targets)
		}

		var wg sync.WaitGroup
		for _, p := range targets[start:end] {
			wg.Add(1)
			go func(p domain.Participant) {
				defer wg.Done()
				out, err := s.SendToParticipant(ctx, eventID, p.CertificationID)

				mu.Lock()
				defer mu.Unlock()
				switch {
				case err != nil:
					result.Failed++
					result.Errors = append(result.Errors, ParticipantError{
						CertificationID: p.CertificationID,
						Name:            p.Name,
						Email:           p.Email,
						Message:         err.Error(),
					})
				case out.Success:
					result.Sent++
				default:
					result.Failed++
					msg := "send failed"
					if out.Err != nil {
						msg = out.Err.UserMessage
					}
					result.Errors = append(result.Errors, ParticipantError{
						CertificationID: p.CertificationID,
						Name:            p.Name,
						Email:           p.Email,
						Message:         msg,
					})
				}
			}(p)
		}
		wg.Wait()

		if end < len(targets) {
			s.sleep(ctx, s.batchDelay)
		}
	}

	result.Success = result.Sent > 0
	logger.Info("bulk send finished", "event_id", eventID,
		"sent", fmt.Sprint(result.Sent), "failed", fmt.Sprint(result.Failed))
	return result, nil
}
