// Package mocks provides gomock implementations of the internal/core ports.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	repo := mocks.NewMockJobRepository(ctrl)
//	repo.EXPECT().ClaimNextQueuedItem(gomock.Any()).Return(nil, model.ErrNoItemsAvailable)
package mocks

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=job_repository_mock.go github.com/target/eligibility-api/internal/core JobRepository
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=job_maintenance_repository_mock.go github.com/target/eligibility-api/internal/core JobMaintenanceRepository
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=size_standard_repository_mock.go github.com/target/eligibility-api/internal/core SizeStandardRepository
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=audit_repository_mock.go github.com/target/eligibility-api/internal/core AuditRepository

// Upstream lookups and the evaluator seam used by the dispatcher tests.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=exclusions_lookup_mock.go github.com/target/eligibility-api/internal/core ExclusionsLookup
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=registration_lookup_mock.go github.com/target/eligibility-api/internal/core RegistrationLookup
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=evaluator_mock.go github.com/target/eligibility-api/internal/core Evaluator
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=completion_notifier_mock.go github.com/target/eligibility-api/internal/core CompletionNotifier
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=cache_repository_mock.go github.com/target/eligibility-api/internal/core CacheRepository
