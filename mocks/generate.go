package mocks

//go:generate mockgen -destination=./mock_gateway.go -package=mocks github.com/rxtech-lab/argo-bitso/internal/exchange Gateway
