package main

import (
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/clock"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/commission"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/config"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/contract"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/events"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/ledger"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/lock"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/migration"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/notification"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/observability"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/payout"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/providers/email"
	paymentprovider "github.com/CloserClaus/closer-claus-hub-sub004/internal/providers/payment"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/providers/slack"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/scheduler"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/server"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/workspace"
	"github.com/CloserClaus/closer-claus-hub-sub004/pkg/db"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,

		// Providers
		paymentprovider.Module,
		email.Module,
		slack.Module,
		events.Module,
		lock.Module,

		// Functional Domains
		workspace.Module,
		ledger.Module,
		notification.Module,
		commission.Module,
		contract.Module,
		payout.Module,

		scheduler.Module,
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
