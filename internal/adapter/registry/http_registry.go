package registry

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/granasat/partledger/internal/config"
	"github.com/granasat/partledger/internal/core/domain"
)

// HTTPRegistry resolves part, vendor and storage-place identifiers against
// the registry service that owns them.
type HTTPRegistry struct {
	httpClient *resty.Client
}

// NewHTTPRegistry builds a registry client from the provided configuration.
func NewHTTPRegistry(cfg config.RegistryConfig) *HTTPRegistry {
	restyClient := resty.New()
	restyClient.
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetHeader("Accept", "application/json").
		SetTimeout(cfg.Timeout)

	return &HTTPRegistry{httpClient: restyClient}
}

func (r *HTTPRegistry) ResolvePart(ctx context.Context, id string) (*domain.Part, error) {
	part := new(domain.Part)
	if err := r.resolve(ctx, "part", "/api/parts/{id}", id, part); err != nil {
		return nil, err
	}
	return part, nil
}

func (r *HTTPRegistry) ResolveVendor(ctx context.Context, id string) (*domain.Vendor, error) {
	vendor := new(domain.Vendor)
	if err := r.resolve(ctx, "vendor", "/api/vendors/{id}", id, vendor); err != nil {
		return nil, err
	}
	return vendor, nil
}

func (r *HTTPRegistry) ResolveStoragePlace(ctx context.Context, id string) (*domain.StoragePlace, error) {
	place := new(domain.StoragePlace)
	if err := r.resolve(ctx, "storage place", "/api/storageplaces/{id}", id, place); err != nil {
		return nil, err
	}
	return place, nil
}

func (r *HTTPRegistry) resolve(ctx context.Context, kind, path, id string, result any) error {
	resp, err := r.httpClient.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetResult(result).
		Get(path)
	if err != nil {
		return fmt.Errorf("registry request for %s %s: %w", kind, id, err)
	}

	if resp.StatusCode() == http.StatusNotFound {
		return &domain.NotFoundError{Kind: kind, ID: id}
	}

	if !resp.IsSuccess() {
		return fmt.Errorf("registry returned %d for %s %s", resp.StatusCode(), kind, id)
	}

	return nil
}
