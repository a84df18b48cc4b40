package handlers

import (
	"context"
	"net/http/httptest"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"limitedtracker/internal/api/apitest"
	"limitedtracker/internal/api/services"
	"limitedtracker/internal/domain"
	"limitedtracker/internal/snapshot"
)

type customValidator struct{ v *validator.Validate }

func (cv *customValidator) Validate(i interface{}) error { return cv.v.Struct(i) }

type acceptAll struct{}

func (acceptAll) Validate(interface{}) error { return nil }

func newEcho() *echo.Echo {
	e := echo.New()
	e.Validator = &customValidator{v: validator.New()}
	return e
}

func newContext(e *echo.Echo, method, target string, params ...string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if len(params) > 0 {
		var names, values []string
		for i := 0; i+1 < len(params); i += 2 {
			names = append(names, params[i])
			values = append(values, params[i+1])
		}
		c.SetParamNames(names...)
		c.SetParamValues(values...)
	}
	return c, rec
}

func newPlayerService(env *apitest.Env) *services.PlayerService {
	return services.NewPlayerService(env.Users, env.Profiles, env.Tracker, env.Rescans, nil, nil)
}

type heldLocker struct{}

func (heldLocker) TryLock(ctx context.Context, key string) (func(), bool, error) {
	return nil, false, nil
}

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time { return c.now }

var (
	day1 = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	day2 = day1.Add(24 * time.Hour)
)

// scanTwoDays stores one snapshot per day for a fresh user and returns them.
func scanTwoDays(env *apitest.Env, clk *testClock) (*domain.User, *snapshot.ScanResult, *snapshot.ScanResult, error) {
	user := &domain.User{Model: domain.Model{ID: newUUID()}, RobloxUserID: 42, Username: "collector"}
	env.Store.PutUser(*user)

	clk.now = day1
	env.Inventories.Set(42, apitest.Unit(10, 100, "Dominus"), apitest.Unit(20, 200, "Valkyrie"))
	first, err := env.Tracker.Scan(context.Background(), user)
	if err != nil {
		return nil, nil, nil, err
	}

	clk.now = day2
	env.Inventories.Set(42, apitest.Unit(10, 100, "Dominus"), apitest.Unit(10, 101, "Dominus"))
	second, err := env.Tracker.Scan(context.Background(), user)
	if err != nil {
		return nil, nil, nil, err
	}
	return user, first, second, nil
}
