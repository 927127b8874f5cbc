package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payout-core/internal/service/payout"
	"payout-core/pkg/errno"
)

type fakeCheckRunner struct {
	res   payout.AutomatedCheckResult
	err   error
	calls int
	now   time.Time
}

func (f *fakeCheckRunner) CheckNow(ctx context.Context, now time.Time) (payout.AutomatedCheckResult, error) {
	f.calls++
	f.now = now
	return f.res, f.err
}

func setupCheckRouter(runner PayoutCheckRunner, loc *time.Location) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewPayoutHandler(nil, nil, runner, loc)
	r := gin.New()
	r.POST("/admin/payout-check", h.RunCheck)
	return r
}

func TestPayoutHandler_RunCheck(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)
	runner := &fakeCheckRunner{res: payout.AutomatedCheckResult{Success: true, JobsCreated: 1, JobID: "job-1"}}
	r := setupCheckRouter(runner, loc)

	env := doJSON(t, r, http.MethodPost, "/admin/payout-check", nil)
	require.Equal(t, errno.OK.Code, env.Code, env.Msg)
	var res payout.AutomatedCheckResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, "job-1", res.JobID)
	assert.Equal(t, 1, runner.calls)
	assert.Equal(t, loc, runner.now.Location())
}

func TestPayoutHandler_RunCheckBusy(t *testing.T) {
	// 定时任务持有锁
	runner := &fakeCheckRunner{err: payout.ErrCheckRunning}
	env := doJSON(t, setupCheckRouter(runner, nil), http.MethodPost, "/admin/payout-check", nil)
	assert.Equal(t, errno.ErrPayoutCheckRunning.Code, env.Code)

	runner = &fakeCheckRunner{res: payout.AutomatedCheckResult{Error: "no primary account"}}
	env = doJSON(t, setupCheckRouter(runner, nil), http.MethodPost, "/admin/payout-check", nil)
	assert.Equal(t, errno.InternalServerError.Code, env.Code)
	assert.Equal(t, "no primary account", env.Msg)
}
