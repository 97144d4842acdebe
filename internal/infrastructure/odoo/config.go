package odoo

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Odoo endpoints, relative to Config.BaseURL
const (
	EndpointAuthenticate     = "web/session/erp_authenticate"
	EndpointAddUpdateOrder   = "api/sale.order/add_update_order"
	EndpointCancelOrder      = "api/sale.order/cancel_order"
	EndpointValidateDelivery = "api/sale.order/validate_order_delivery"
	EndpointAvailableStock   = "api/stock.quant/get_available_qty_data"
)

const (
	// DefaultSendTimeout bounds add_update_order calls
	DefaultSendTimeout = 30 * time.Second
	// DefaultRequestTimeout bounds auth, cancel, validate and stock calls
	DefaultRequestTimeout = 20 * time.Second
	// DefaultTokenTTL is how long an auth token is reused
	DefaultTokenTTL = 24 * time.Hour
)

// ErrInvalidConfig is returned by Config.Validate
var ErrInvalidConfig = errors.New("odoo: invalid configuration")

// Config holds the Odoo connection settings
type Config struct {
	// BaseURL is the Odoo server root, e.g. https://erp.example.com
	BaseURL string `validate:"required,url"`
	// Database is the Odoo database name sent on authentication
	Database string `validate:"required"`
	Login    string `validate:"required"`
	Password string `validate:"required"`
	// LocationID is the stock location queried for available quantities
	LocationID int64 `validate:"gte=0"`

	SendTimeout    time.Duration `validate:"gte=0"`
	RequestTimeout time.Duration `validate:"gte=0"`
	TokenTTL       time.Duration `validate:"gte=0"`
}

var configValidator = validator.New()

// Validate checks required fields and fills in default timeouts
func (c *Config) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s failed %q", ErrInvalidConfig, verrs[0].Field(), verrs[0].Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.SendTimeout == 0 {
		c.SendTimeout = DefaultSendTimeout
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.TokenTTL == 0 {
		c.TokenTTL = DefaultTokenTTL
	}
	return nil
}

// URL returns the absolute URL of an endpoint
func (c *Config) URL(endpoint string) string {
	return c.BaseURL + "/" + strings.TrimLeft(endpoint, "/")
}
