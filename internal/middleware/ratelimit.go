package middleware

import (
	sentinel "github.com/alibaba/sentinel-golang/api"
	"github.com/alibaba/sentinel-golang/core/base"
	"github.com/alibaba/sentinel-golang/core/flow"
	"github.com/gofiber/fiber/v2"
)

// Resource names guarded by sentinel flow rules.
const (
	ResCatalogSearch = "catalog_search"
	ResCatalogSync   = "catalog_sync"
)

// InitRateLimits starts sentinel and loads one QPS rule per WooCommerce-bound resource.
// A threshold <= 0 leaves that resource unlimited.
func InitRateLimits(searchQPS, syncQPS float64) error {
	if err := sentinel.InitDefault(); err != nil {
		return err
	}

	var rules []*flow.Rule
	for res, qps := range map[string]float64{ResCatalogSearch: searchQPS, ResCatalogSync: syncQPS} {
		if qps <= 0 {
			continue
		}
		rules = append(rules, &flow.Rule{
			Resource:               res,
			TokenCalculateStrategy: flow.Direct,
			ControlBehavior:        flow.Reject,
			Threshold:              qps,
			StatIntervalInMs:       1000,
		})
	}
	_, err := flow.LoadRules(rules)
	return err
}

func RateLimit(resource string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		e, b := sentinel.Entry(resource, sentinel.WithTrafficType(base.Inbound))
		if b != nil {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"success": false,
				"message": "Terlalu banyak permintaan, coba lagi sebentar",
			})
		}
		defer e.Exit()

		return c.Next()
	}
}
