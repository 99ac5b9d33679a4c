// Package app assembles the claim engine from its modules.
package app

import (
	"github.com/smallbiznis/claimflow/internal/attachment"
	"github.com/smallbiznis/claimflow/internal/audit"
	"github.com/smallbiznis/claimflow/internal/claim"
	"github.com/smallbiznis/claimflow/internal/claim/editor"
	"github.com/smallbiznis/claimflow/internal/clock"
	"github.com/smallbiznis/claimflow/internal/config"
	"github.com/smallbiznis/claimflow/internal/document"
	"github.com/smallbiznis/claimflow/internal/gap/payment"
	"github.com/smallbiznis/claimflow/internal/gap/poller"
	"github.com/smallbiznis/claimflow/internal/history"
	"github.com/smallbiznis/claimflow/internal/insurance"
	"github.com/smallbiznis/claimflow/internal/insurance/notification"
	"github.com/smallbiznis/claimflow/internal/insurance/sandbox"
	"github.com/smallbiznis/claimflow/internal/invoice"
	"github.com/smallbiznis/claimflow/internal/lock"
	"github.com/smallbiznis/claimflow/internal/logger"
	"github.com/smallbiznis/claimflow/internal/migration"
	"github.com/smallbiznis/claimflow/internal/observability"
	"github.com/smallbiznis/claimflow/internal/policy"
	"github.com/smallbiznis/claimflow/internal/render"
	"github.com/smallbiznis/claimflow/internal/scheduler"
	"github.com/smallbiznis/claimflow/internal/submission"
	"github.com/smallbiznis/claimflow/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Infrastructure is everything the claim domain runs on.
var Infrastructure = fx.Options(
	config.Module,
	logger.Module,
	observability.Module,
	db.Module,
	clock.Module,
	scheduler.Module,
	lock.Module,
	migration.Module,
)

// Domain holds the claim modules and the insurer integrations.
var Domain = fx.Options(
	claim.Module,
	editor.Module,
	attachment.Module,
	render.Module,
	document.Module,
	history.Module,
	invoice.Module,
	policy.Module,
	audit.Module,
	insurance.Module,
	notification.Module,
	sandbox.Module,
	payment.Module,
	poller.Module,
	submission.Module,
)

var Module = fx.Options(
	Infrastructure,
	Domain,
	fx.WithLogger(logger.NewFxEventLogger),
	fx.Invoke(announce),
)

// Engine is what a front end drives: editors build claims, the coordinator moves them through
// submission, payment and cancellation.
type Engine struct {
	fx.In

	Editors     *editor.Factory
	Coordinator *submission.Coordinator
	Services    *insurance.Services
}

func announce(e Engine, cfg config.Config, log *zap.Logger) {
	log.Named("app").Info("claim engine ready",
		zap.String("version", cfg.AppVersion),
		zap.Strings("insurance_services", e.Services.Names()),
	)
}
