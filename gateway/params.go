package gateway

import (
	"fmt"
	"strconv"

	"github.com/example/icecreamshop/pkg/apperr"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

func pathID(c *gin.Context, name string) (uint, error) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Validation("invalid %s %q", name, raw)
	}
	return uint(id), nil
}

// queryInt returns 0 for a missing value so the service default applies.
func queryInt(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Validation("%s must be an integer", name)
	}
	return n, nil
}

func queryPage(c *gin.Context) (int, int, error) {
	page, err := queryInt(c, "page")
	if err != nil {
		return 0, 0, err
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		return 0, 0, err
	}
	return page, limit, nil
}

// queryDecimal reads the first present parameter among names.
func queryDecimal(c *gin.Context, names ...string) (*decimal.Decimal, error) {
	for _, name := range names {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, apperr.Validation("%s must be a number", name)
		}
		return &d, nil
	}
	return nil, nil
}

// queryID reads the first present id parameter among names.
func queryID(c *gin.Context, names ...string) (uint, error) {
	for _, name := range names {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || id == 0 {
			return 0, apperr.Validation("invalid %s %q", name, raw)
		}
		return uint(id), nil
	}
	return 0, apperr.Validation("%s is required", names[0])
}

func bindingError(err error) error {
	return fmt.Errorf("%w: invalid request body: %s", apperr.ErrValidation, err.Error())
}
