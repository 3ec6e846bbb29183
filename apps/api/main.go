package main

import (
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/clock"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/commission"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/config"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/contract"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/events"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/ledger"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/lock"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/notification"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/observability"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/payout"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/providers/email"
	paymentprovider "github.com/CloserClaus/closer-claus-hub-sub004/internal/providers/payment"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/providers/slack"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/server"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/workspace"
	"github.com/CloserClaus/closer-claus-hub-sub004/pkg/db"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
)

// The API process serves HTTP only; the manual payout trigger still works
// because the processor shares the redis batch lock with apps/scheduler.
func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		paymentprovider.Module,
		email.Module,
		slack.Module,
		events.Module,
		lock.Module,

		workspace.Module,
		ledger.Module,
		notification.Module,
		commission.Module,
		contract.Module,
		payout.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
