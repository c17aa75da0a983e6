package service

import (
	"context"
	"errors"
	"log"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fitstack/coinpay/internal/core/domain"
	"github.com/fitstack/coinpay/internal/core/ports"
)

// CallbackRequest is what the HTTP layer hands over for one webhook delivery.
type CallbackRequest struct {
	GatewayID       string
	PresentedSecret string
	Body            []byte
}

// CallbackService runs one webhook delivery through verification and reconciliation.
type CallbackService struct {
	gateways   *Gateways
	settings   *SettingsService
	verifier   *Verifier
	reconciler *Reconciler
}

// NewCallbackService creates a new callback service.
func NewCallbackService(gateways *Gateways, settings *SettingsService, verifier *Verifier, reconciler *Reconciler) *CallbackService {
	return &CallbackService{
		gateways:   gateways,
		settings:   settings,
		verifier:   verifier,
		reconciler: reconciler,
	}
}

// HandleCallback returns a classified outcome; it never panics on bad input.
// Callbacks are accepted for disabled gateways so in-flight payments still settle.
func (s *CallbackService) HandleCallback(ctx context.Context, req CallbackRequest) (*domain.ReconcileResult, error) {
	ctx, span := tracer.Start(ctx, "CallbackService.HandleCallback", trace.WithAttributes(
		attribute.String("gateway.id", req.GatewayID),
	))
	defer span.End()

	result, err := s.handle(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String("error.kind", string(domain.KindOf(err))))
		return nil, err
	}
	return result, nil
}

func (s *CallbackService) handle(ctx context.Context, req CallbackRequest) (*domain.ReconcileResult, error) {
	processor, err := s.gateways.Lookup(req.GatewayID)
	if err != nil {
		return nil, err
	}
	settings, err := s.settings.Load(ctx, req.GatewayID)
	if err != nil {
		return nil, err
	}

	// Step 1: authenticate and decode
	n, err := s.verifier.Verify(req.PresentedSecret, settings.CallbackSecret, req.Body, processor)
	if errors.Is(err, domain.ErrIgnoredNotification) {
		return &domain.ReconcileResult{Action: domain.ActionIgnored}, nil
	}
	if err != nil {
		log.Printf("[Callback] %s callback rejected: %v", req.GatewayID, err)
		return nil, err
	}

	// Step 2: resolve id-only notifications through the processor API
	if resolver, ok := processor.(ports.NotificationResolver); ok {
		n, err = resolver.ResolveNotification(ctx, settings.Credentials(), n)
		if errors.Is(err, domain.ErrIgnoredNotification) {
			return &domain.ReconcileResult{Action: domain.ActionIgnored}, nil
		}
		if err != nil {
			log.Printf("[Callback] failed to resolve %s notification: %v", req.GatewayID, err)
			return nil, domain.NewServiceError(domain.KindUpstream, domain.ErrProcessorFailure,
				"failed to resolve notification: "+err.Error(), "RESOLVE_ERROR")
		}
	}
	if n.CustomID == "" {
		return nil, domain.NewServiceError(domain.KindValidation, domain.ErrMalformedNotification,
			"notification carries no order id", "MALFORMED_NOTIFICATION")
	}

	// Step 3: reconcile
	return s.reconciler.Reconcile(ctx, processor.Brand(), n)
}
