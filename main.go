// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/xmidt-org/candlelight"
	"github.com/xmidt-org/panoptes/diaglog"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

const (
	applicationName = "panoptes"
)

var (
	GitCommit = "undefined"
	Version   = "undefined"
	BuildTime = "undefined"
)

var errVersionPrinted = errors.New("version printed")

func newApp(v *viper.Viper, logger *zap.Logger, diag *diaglog.Logger, extra ...fx.Option) *fx.App {
	options := []fx.Option{
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger}
		}),
		fx.Supply(logger, v, diag),
		provideMetrics(),
		fx.Provide(
			provideConfig,
			candlelight.New,
			provideVMS,
			provideStreamCache,
			provideArchive,
			provideHandlers,
		),
		fx.Invoke(
			BuildServers,
		),
	}
	return fx.New(append(options, extra...)...)
}

func main() {
	v, logger, diag, err := setup(os.Args[1:], os.Stdout)
	switch {
	case errors.Is(err, errVersionPrinted), errors.Is(err, pflag.ErrHelp):
		return
	case err != nil:
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	app := newApp(v, logger, diag)
	if err := app.Err(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	app.Run()
}
