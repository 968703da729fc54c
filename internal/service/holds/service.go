// Package holds drives the payment hold of a ride booking from authorization
// to capture, void or refund.
package holds

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Domenick1991/ridehold/internal/cache"
	"github.com/Domenick1991/ridehold/internal/domain"
	"github.com/Domenick1991/ridehold/internal/provider"
	"github.com/Domenick1991/ridehold/internal/repository"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const DefaultAuthorizationWindow = 12 * time.Hour

type UseCase interface {
	CreateHold(ctx context.Context, input CreateHoldInput) (*HoldResult, error)
	CaptureHold(ctx context.Context, bookingID string) (*CaptureResult, error)
	RefundHold(ctx context.Context, bookingID string, reason domain.RefundReason) (*RefundResult, error)
	AcceptBooking(ctx context.Context, bookingID string) (*CaptureResult, error)
	RejectBooking(ctx context.Context, bookingID string) (*RefundResult, error)
	CancelBooking(ctx context.Context, bookingID string) (*CancelResult, error)
	Reconcile(ctx context.Context, limit int) (ReconcileReport, error)
}

// Providers resolves the adapter recorded on a payment.
type Providers interface {
	Get(name domain.PaymentProvider) (provider.Provider, error)
}

// Locker serializes operations on one booking. The returned func releases
// the lock.
type Locker interface {
	Lock(ctx context.Context, bookingID string) (func(), error)
}

type Publisher interface {
	PublishHoldEvent(ctx context.Context, event domain.HoldEvent) error
}

type Service struct {
	store     repository.Store
	providers Providers
	locker    Locker
	publisher Publisher
	logger    *slog.Logger
	tracer    trace.Tracer
	now       func() time.Time
	window    time.Duration
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func WithAuthorizationWindow(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.window = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService wires the hold manager. A nil locker falls back to an in-process
// lock and a nil publisher disables events.
func NewService(store repository.Store, providers Providers, locker Locker, publisher Publisher, opts ...Option) *Service {
	s := &Service{
		store:     store,
		providers: providers,
		locker:    locker,
		publisher: publisher,
		logger:    slog.Default(),
		tracer:    otel.Tracer("github.com/Domenick1991/ridehold/internal/service/holds"),
		now:       time.Now,
		window:    DefaultAuthorizationWindow,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.locker == nil {
		s.locker = cache.NewLocalLocker()
	}
	return s
}

type CreateHoldInput struct {
	BookingID string                 `json:"booking_id"`
	UserID    string                 `json:"user_id"`
	Amount    domain.Money           `json:"amount"`
	Method    string                 `json:"payment_method"`
	Provider  domain.PaymentProvider `json:"provider"`
}

func (in CreateHoldInput) validate() error {
	switch {
	case strings.TrimSpace(in.BookingID) == "":
		return domain.NewValidationError("booking_id", "is required")
	case strings.TrimSpace(in.UserID) == "":
		return domain.NewValidationError("user_id", "is required")
	case !in.Amount.IsPositive():
		return domain.NewValidationError("amount", "must be greater than zero")
	case len(in.Amount.Currency) != 3:
		return domain.NewValidationError("currency", "must be a 3-letter code")
	case strings.TrimSpace(in.Method) == "":
		return domain.NewValidationError("payment_method", "is required")
	case !in.Provider.Valid():
		return domain.NewValidationError("provider", fmt.Sprintf("%q is not supported", in.Provider))
	}
	return nil
}

type HoldResult struct {
	Payment domain.PaymentRecord `json:"payment"`
	Hold    domain.HoldRecord    `json:"hold"`
}

// CreateHold authorizes the rider's payment method and records the hold. The
// provider is called before anything is written, so a provider failure leaves
// no rows behind.
func (s *Service) CreateHold(ctx context.Context, in CreateHoldInput) (_ *HoldResult, err error) {
	ctx, span := s.startSpan(ctx, "holds.CreateHold", in.BookingID)
	defer func() { endSpan(span, err) }()

	if err := in.validate(); err != nil {
		return nil, err
	}
	in.Amount.Currency = strings.ToUpper(in.Amount.Currency)

	unlock, err := s.locker.Lock(ctx, in.BookingID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	booking, err := s.store.Bookings.GetByID(ctx, in.BookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status != domain.BookingStatusPending {
		return nil, fmt.Errorf("%w: booking %s is %s", domain.ErrBookingNotPending, booking.ID, booking.Status)
	}

	payments, err := s.store.Payments.ListByBooking(ctx, in.BookingID)
	if err != nil {
		return nil, err
	}
	if active := firstActive(payments); active != nil {
		return nil, fmt.Errorf("%w: payment %s is %s", domain.ErrActiveHoldExists, active.ID, active.Status)
	}

	prov, err := s.providers.Get(in.Provider)
	if err != nil {
		return nil, domain.NewValidationError("provider", err.Error())
	}

	// one key per attempt, so a retry never gets back an orphan voided below
	paymentID := uuid.New()
	auth, err := prov.Authorize(ctx, provider.AuthorizeRequest{
		Amount:         in.Amount,
		Method:         in.Method,
		IdempotencyKey: paymentID.String(),
		Metadata: map[string]string{
			"booking_id": in.BookingID,
			"user_id":    in.UserID,
			"payment_id": paymentID.String(),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("authorize hold for booking %s: %w", in.BookingID, err)
	}

	now := s.now()
	expiresAt := now.Add(s.window)
	payment := domain.PaymentRecord{
		ID:            paymentID,
		BookingID:     in.BookingID,
		UserID:        in.UserID,
		Amount:        in.Amount,
		Provider:      prov.Name(),
		PaymentMethod: in.Method,
		Status:        auth.Status,
		ExpiresAt:     expiresAt,
	}
	if auth.OrderID != "" {
		payment.PaymentIntentID = auth.OrderID
		if auth.Reference != auth.OrderID {
			payment.AuthorizationID = auth.Reference
		}
	} else {
		payment.PaymentIntentID = auth.Reference
	}
	hold := domain.HoldRecord{
		ID:         uuid.New(),
		BookingID:  in.BookingID,
		PaymentID:  payment.ID,
		HoldAmount: in.Amount,
		ExpiresAt:  expiresAt,
		Status:     domain.HoldStatusActive,
	}

	err = s.store.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.store.Payments.Create(ctx, &payment); err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}
		if err := s.store.Holds.Create(ctx, &hold); err != nil {
			return fmt.Errorf("insert hold: %w", err)
		}
		return s.store.Bookings.MarkAuthorized(ctx, in.BookingID, auth.Status, now, expiresAt)
	})
	if err != nil {
		s.releaseOrphan(ctx, prov, auth, in.BookingID)
		return nil, fmt.Errorf("persist hold for booking %s: %w", in.BookingID, err)
	}

	s.logger.InfoContext(ctx, "hold created",
		"booking_id", in.BookingID,
		"payment_id", payment.ID,
		"provider", payment.Provider,
		"status", payment.Status,
		"amount", payment.Amount.String(),
		"expires_at", expiresAt,
	)
	return &HoldResult{Payment: payment, Hold: hold}, nil
}

// releaseOrphan voids an authorization whose rows could not be written.
func (s *Service) releaseOrphan(ctx context.Context, prov provider.Provider, auth provider.Authorization, bookingID string) {
	if auth.Status != domain.PaymentStatusAuthorized {
		return
	}
	if err := prov.Void(context.WithoutCancel(ctx), auth.Reference); err != nil {
		s.logger.ErrorContext(ctx, "void orphaned authorization failed",
			"booking_id", bookingID,
			"provider", prov.Name(),
			"reference", auth.Reference,
			"error", err,
		)
	}
}

func (s *Service) publish(ctx context.Context, event domain.HoldEvent) {
	if s.publisher == nil {
		return
	}
	event.OccurredAt = s.now()
	if err := s.publisher.PublishHoldEvent(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "publish hold event failed",
			"booking_id", event.BookingID,
			"outcome", event.Outcome,
			"error", err,
		)
	}
}

// holdFor returns the hold row of a payment, nil when none was recorded.
func (s *Service) holdFor(ctx context.Context, paymentID uuid.UUID) (*domain.HoldRecord, error) {
	hold, err := s.store.Holds.GetByPayment(ctx, paymentID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return hold, err
}

func (s *Service) startSpan(ctx context.Context, name, bookingID string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(attribute.String("booking.id", bookingID)))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func firstActive(payments []domain.PaymentRecord) *domain.PaymentRecord {
	for i := range payments {
		if payments[i].Status.IsActive() {
			return &payments[i]
		}
	}
	return nil
}

func firstWhere(payments []domain.PaymentRecord, match func(domain.PaymentStatus) bool) *domain.PaymentRecord {
	for i := range payments {
		if match(payments[i].Status) {
			return &payments[i]
		}
	}
	return nil
}

func notFound(bookingID string, payments []domain.PaymentRecord) error {
	statuses := make([]domain.PaymentStatus, 0, len(payments))
	for _, p := range payments {
		statuses = append(statuses, p.Status)
	}
	return &domain.RecordNotFoundError{
		Entity:       "payment",
		BookingID:    bookingID,
		PaymentCount: len(payments),
		Statuses:     statuses,
	}
}

var _ UseCase = (*Service)(nil)
