package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/M-24rjgc/cognical/internal/events"
	"github.com/M-24rjgc/cognical/internal/gateway"
	"github.com/M-24rjgc/cognical/internal/planning"
	"github.com/M-24rjgc/cognical/types"
	"github.com/spf13/viper"
)

func isJSON() bool {
	return viper.GetBool("json")
}

func isVerbose() bool {
	return viper.GetBool("verbose")
}

func printJSON(v any) error {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(output))
	return nil
}

// openStore builds the planning store on top of the configured gateway.
// Each invocation gets its own store; the simulated collaborator persists
// state in SQLite so sessions survive between commands. The returned close
// function releases the gateway's resources.
func openStore() (*planning.Store, func(), error) {
	gw, err := gateway.New(&GetConfig().Gateway)
	if err != nil {
		return nil, nil, fmt.Errorf("initialize planning gateway: %w", err)
	}
	closeFn := func() {
		if c, ok := gw.(io.Closer); ok {
			_ = c.Close()
		}
	}
	return planning.NewStore(gw, events.Default()), closeFn, nil
}

// errorCode extracts the taxonomy code from a planning error, for telemetry
// and for the human-readable failure line.
func errorCode(err error) string {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return string(appErr.Code)
	}
	return string(types.ErrUnknown)
}

// reportError prints a planning failure in a consistent shape. Structured
// errors keep their code and correlation id visible so users can quote them
// in bug reports.
func reportError(err error) error {
	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		return err
	}
	if isJSON() {
		_ = printJSON(appErr)
		return fmt.Errorf("%s", appErr.Code)
	}
	if appErr.CorrelationID != "" {
		return fmt.Errorf("%s (correlation id %s)", appErr.Error(), appErr.CorrelationID)
	}
	return errors.New(appErr.Error())
}
