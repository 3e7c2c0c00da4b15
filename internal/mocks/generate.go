// Package mocks provides mock implementations for testing the queue and
// decision services.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for
// the core ports. The mocks are generated using go:generate directives and
// provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	defer ctrl.Finish()
//	mockBackend := mocks.NewMockDeliveryBackend(ctrl)
//	mockBackend.EXPECT().Send(gomock.Any(), gomock.Any()).Return(core.SendResult{Success: true}, nil)
package mocks

// Generate mock for DeliveryBackend interface from internal/core package.
// This creates MockDeliveryBackend with methods for all DeliveryBackend interface methods:
// Send
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=delivery_backend_mock.go github.com/andretaki/alliance-form-sub000/internal/core DeliveryBackend

// Generate mock for HealthChecker interface from internal/core package.
// This creates MockHealthChecker with methods for all HealthChecker interface methods:
// IsAvailable
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=health_checker_mock.go github.com/andretaki/alliance-form-sub000/internal/core HealthChecker
