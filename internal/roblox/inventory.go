package roblox

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"limitedtracker/internal/domain"
	"limitedtracker/internal/metrics"
)

// Inventory is the result of a paginated collectibles fetch. Complete is
// false when the fetch stopped early or dropped entries, so Units may be
// missing owned items.
type Inventory struct {
	Units    []domain.InventoryUnit
	Complete bool
	Pages    int
	// Skipped counts entries dropped by schema validation. Any skipped
	// entry makes the inventory incomplete.
	Skipped int
}

type collectiblesPage struct {
	NextPageCursor string            `json:"nextPageCursor"`
	Data           []collectibleItem `json:"data"`
}

type collectibleItem struct {
	AssetID      int64  `json:"assetId" validate:"gt=0"`
	UserAssetID  int64  `json:"userAssetId" validate:"gt=0"`
	SerialNumber *int64 `json:"serialNumber" validate:"omitempty,gte=1"`
	Name         string `json:"name"`
}

// FetchInventory pages through the user's collectibles. Rate limited pages
// are retried with exponential backoff; if retries run out the units
// gathered so far are returned with Complete set to false. Not found,
// private and invalid targets fail immediately. Any other failure returns
// the partial inventory when something was gathered and an error otherwise.
func (c *Client) FetchInventory(ctx context.Context, robloxUserID int64) (*Inventory, error) {
	if c.overallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.overallTimeout)
		defer cancel()
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if c.pageDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(c.pageDelay), 1)
	}

	inv := &Inventory{Complete: true}
	cursor := ""

	for {
		if inv.Pages > 0 {
			if err := limiter.Wait(ctx); err != nil {
				return c.partial(inv, robloxUserID, fmt.Errorf("wait between pages: %w", err))
			}
		} else {
			limiter.Allow()
		}

		page, err := c.fetchPage(ctx, robloxUserID, cursor)
		if err != nil {
			if IsPermanent(err) {
				return nil, err
			}
			if errors.Is(err, errRetriesExhausted) {
				c.log.Warn("rate limit retries exhausted, returning partial inventory",
					zap.Int64("roblox_user_id", robloxUserID),
					zap.Int("pages", inv.Pages),
					zap.Int("units", len(inv.Units)),
				)
				inv.Complete = false
				return inv, nil
			}
			return c.partial(inv, robloxUserID, err)
		}

		inv.Pages++
		units, skipped := c.decodeItems(robloxUserID, page.Data)
		inv.Units = append(inv.Units, units...)
		if skipped > 0 {
			inv.Skipped += skipped
			inv.Complete = false
		}

		if page.NextPageCursor == "" {
			return inv, nil
		}
		cursor = page.NextPageCursor
	}
}

func (c *Client) partial(inv *Inventory, robloxUserID int64, err error) (*Inventory, error) {
	if len(inv.Units) == 0 {
		return nil, fmt.Errorf("fetch inventory %d: %w", robloxUserID, err)
	}
	c.log.Warn("inventory fetch failed mid-way, returning partial inventory",
		zap.Int64("roblox_user_id", robloxUserID),
		zap.Int("pages", inv.Pages),
		zap.Int("units", len(inv.Units)),
		zap.Error(err),
	)
	inv.Complete = false
	return inv, nil
}

// fetchPage requests one page, retrying only on rate limit responses.
func (c *Client) fetchPage(ctx context.Context, robloxUserID int64, cursor string) (*collectiblesPage, error) {
	q := url.Values{}
	q.Set("sortOrder", "Asc")
	q.Set("limit", fmt.Sprint(c.pageSize))
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	u := fmt.Sprintf("%s/v1/users/%d/assets/collectibles?%s", c.inventoryURL, robloxUserID, q.Encode())

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryBaseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = time.Duration(1<<uint(max(c.maxRetries, 0))) * c.retryBaseDelay
	b.Reset()

	for attempt := 0; ; attempt++ {
		var page collectiblesPage
		err := c.getJSON(ctx, u, &page)
		if err == nil {
			metrics.FetchPagesTotal.WithLabelValues("ok").Inc()
			return &page, nil
		}
		if !errors.Is(err, errRateLimited) {
			metrics.FetchPagesTotal.WithLabelValues("error").Inc()
			return nil, err
		}
		metrics.FetchPagesTotal.WithLabelValues("rate_limited").Inc()

		if attempt >= c.maxRetries {
			return nil, errRetriesExhausted
		}

		sleep := b.NextBackOff()
		if sleep == backoff.Stop {
			return nil, errRetriesExhausted
		}
		metrics.FetchRetriesTotal.Inc()
		c.log.Debug("rate limited, backing off",
			zap.Int64("roblox_user_id", robloxUserID),
			zap.Int("attempt", attempt+1),
			zap.Duration("sleep", sleep),
		)

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (c *Client) decodeItems(robloxUserID int64, items []collectibleItem) ([]domain.InventoryUnit, int) {
	units := make([]domain.InventoryUnit, 0, len(items))
	skipped := 0
	for _, it := range items {
		if err := c.validate.Struct(it); err != nil {
			c.log.Warn("skipping malformed inventory entry",
				zap.Int64("roblox_user_id", robloxUserID),
				zap.Int64("asset_id", it.AssetID),
				zap.Int64("user_asset_id", it.UserAssetID),
				zap.Error(err),
			)
			skipped++
			continue
		}
		units = append(units, domain.InventoryUnit{
			AssetID:      it.AssetID,
			UserAssetID:  it.UserAssetID,
			SerialNumber: it.SerialNumber,
			Name:         it.Name,
		})
	}
	return units, skipped
}
