package main

import (
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/clock"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/config"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/events"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/ledger"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/lock"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/notification"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/observability"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/payout"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/providers/email"
	paymentprovider "github.com/CloserClaus/closer-claus-hub-sub004/internal/providers/payment"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/providers/slack"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/scheduler"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/workspace"
	"github.com/CloserClaus/closer-claus-hub-sub004/pkg/db"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		// Domain services required by the payout batch
		paymentprovider.Module,
		email.Module,
		slack.Module,
		events.Module,
		lock.Module,
		workspace.Module,
		ledger.Module,
		notification.Module,
		payout.Module,

		// No server module!
		scheduler.Module,
	)
	app.Run()
}

// Node 2 keeps ids distinct from an API process writing at the same time.
func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(2)
	if err != nil {
		panic(err)
	}
	return node
}
