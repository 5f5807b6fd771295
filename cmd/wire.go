package cmd

import (
	"fmt"

	filestore "github.com/bnema/relayd/internal/adapters/credentials/file"
	"github.com/bnema/relayd/internal/adapters/ledger/jsonfile"
	statusadapter "github.com/bnema/relayd/internal/adapters/render/status"
	"github.com/bnema/relayd/internal/application"
	"github.com/bnema/relayd/internal/config"
	"github.com/bnema/relayd/internal/ports"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type app struct {
	cfg            config.Config
	logger         *zap.Logger
	statusRenderer func([]application.SessionRecord, statusadapter.RenderOptions) (string, error)
	clock          ports.Clock
}

func (a *app) load(opts *rootOptions) error {
	cfg, err := config.Load(viper.New(), opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(opts.verbose)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logger
	a.statusRenderer = statusadapter.Render
	a.clock = ports.SystemClock{}
	return nil
}

func (a *app) credentialStore() *filestore.Store {
	return filestore.NewStore(a.cfg.SessionsDir)
}

func (a *app) ledger() (*jsonfile.Ledger, error) {
	ledger, err := jsonfile.NewLedger(a.cfg.LedgerPath)
	if err != nil {
		return nil, fmt.Errorf("wire ledger: %w", err)
	}
	return ledger, nil
}

func (a *app) inventory() (*application.InventoryService, error) {
	ledger, err := a.ledger()
	if err != nil {
		return nil, err
	}
	return application.NewInventoryService(a.credentialStore(), ledger), nil
}
