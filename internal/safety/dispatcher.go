package safety

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"socialscope/internal/logging"
	"socialscope/internal/store"
)

// AlertInput is a crisis-flagged submission received from the survey
// surface.
type AlertInput struct {
	TriggeredAt   time.Time
	ResponsesJSON string
}

// Dispatcher persists safety alerts and pages the study team. Persistence
// always happens first: an alert row exists before any delivery attempt,
// and a failed page leaves the row unhandled with the error recorded so
// monitoring can see it.
type Dispatcher struct {
	store         *store.Store
	notifier      Notifier
	logger        *slog.Logger
	participantID string
	pageTarget    string

	wg sync.WaitGroup
}

// NewDispatcher creates an alert dispatcher. A nil notifier disables
// paging; alerts are still captured and synced.
func NewDispatcher(st *store.Store, notifier Notifier, logger *slog.Logger, participantID, pageTarget string) *Dispatcher {
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	return &Dispatcher{
		store:         st,
		notifier:      notifier,
		logger:        logging.NewComponentLogger(logger, "safety"),
		participantID: participantID,
		pageTarget:    pageTarget,
	}
}

// Create persists the alert and kicks off delivery in the background.
// The returned alert reflects the persisted (pre-delivery) state, so
// callers can acknowledge receipt without waiting on the gateway.
func (d *Dispatcher) Create(ctx context.Context, input AlertInput) (*store.SafetyAlert, error) {
	triggeredAt := input.TriggeredAt
	if triggeredAt.IsZero() {
		triggeredAt = time.Now().UTC()
	}

	alert := &store.SafetyAlert{
		ID:            uuid.NewString(),
		ParticipantID: d.participantID,
		TriggeredAt:   triggeredAt,
		PageTarget:    d.pageTarget,
		ResponsesJSON: input.ResponsesJSON,
	}
	if err := d.store.InsertAlert(ctx, alert); err != nil {
		return nil, fmt.Errorf("persist alert: %w", err)
	}
	d.logger.Warn("safety alert captured", logging.FieldAlertID, alert.ID)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		dispatchCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := d.Dispatch(dispatchCtx, alert); err != nil {
			d.logger.Error("safety alert delivery failed", logging.FieldAlertID, alert.ID, logging.Error(err))
		}
	}()

	return alert, nil
}

// Dispatch attempts delivery for one persisted alert and records the
// outcome. Success marks the alert handled; failure records the error
// and leaves handled false.
func (d *Dispatcher) Dispatch(ctx context.Context, alert *store.SafetyAlert) error {
	if alert == nil {
		return errors.New("alert is nil")
	}

	delivery, err := d.notifier.Page(ctx, alert.ParticipantID, alert.TriggeredAt, alert.PageTarget)
	if err != nil {
		alert.SMSError = err.Error()
		if updateErr := d.store.UpdateAlertDelivery(ctx, alert); updateErr != nil {
			return fmt.Errorf("record delivery failure: %w (page error: %s)", updateErr, err)
		}
		return err
	}

	now := time.Now().UTC()
	alert.Handled = true
	alert.HandledAt = &now
	alert.SMSSID = delivery.SID
	alert.SMSStatus = delivery.Status
	alert.SMSError = ""
	if err := d.store.UpdateAlertDelivery(ctx, alert); err != nil {
		return fmt.Errorf("record delivery: %w", err)
	}
	d.logger.Info("safety alert delivered", logging.FieldAlertID, alert.ID, "sms_status", delivery.Status)
	return nil
}

// Resweep retries delivery for every unhandled alert. Run at startup so
// alerts created right before a crash or network outage still page.
func (d *Dispatcher) Resweep(ctx context.Context) (int, error) {
	alerts, err := d.store.UnhandledAlerts(ctx)
	if err != nil {
		return 0, fmt.Errorf("load unhandled alerts: %w", err)
	}

	delivered := 0
	for _, alert := range alerts {
		if err := d.Dispatch(ctx, alert); err != nil {
			d.logger.Warn("resweep delivery failed", logging.FieldAlertID, alert.ID, logging.Error(err))
			continue
		}
		delivered++
	}
	if len(alerts) > 0 {
		d.logger.Info("alert resweep complete", "unhandled", len(alerts), "delivered", delivered)
	}
	return delivered, nil
}

// Wait blocks until all background deliveries finish. Used on shutdown.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
