package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nearedge/latchy/assets"
	"github.com/nearedge/latchy/config"
	"github.com/nearedge/latchy/errs"
	"github.com/nearedge/latchy/fingerprint"
	"github.com/nearedge/latchy/tang"
	"github.com/nearedge/latchy/ui"
	"github.com/urfave/cli"
)

// envCfg is the environment fallback for explicit configuration, honored
// whenever --cfg is not given; stdin is then not read for configuration.
const envCfg = "LATCHYCFG"

func main() {
	app := cli.NewApp()
	app.Name = "latchy"
	app.HelpName = "latchy"
	app.Usage = "unseal Clevis/Tang secrets and deliver them to a local consumer"
	app.Writer = os.Stdout
	app.ErrWriter = os.Stderr
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "c, cfg",
			Usage: "explicit JSON configuration string",
		},
		cli.BoolFlag{
			Name:  "d, debug",
			Usage: "verbose diagnostics to the error stream",
		},
		cli.BoolFlag{
			Name:  "t, trace",
			Usage: "informational diagnostics to the error stream",
		},
		cli.BoolFlag{
			Name:  "dump",
			Usage: "parse the JWE and print the protected header; perform no decryption",
		},
		cli.BoolFlag{
			Name:  "compatible",
			Usage: "relax Tang response handling for servers that deviate from strict status codes",
		},
	}
	app.Action = cli.ActionFunc(runLatchy)

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runLatchy(c *cli.Context) error {
	sink := ui.New(c.Bool("trace"), c.Bool("debug"))
	logFingerprintTiers(sink)

	cfgList, stdinData, err := resolveConfig(c)
	if err != nil {
		return errs.ToError(err)
	}

	client := tang.New()
	client.Compatible = c.Bool("compatible")

	dumpOnly := c.Bool("dump")
	list, dumps, err := assets.Build(cfgList, client, dumpOnly, sink, stdinData)
	if err != nil {
		return errs.ToError(err)
	}

	if dumpOnly {
		for _, d := range dumps {
			sink.UserMsg(d)
		}
		return nil
	}

	if err := list.StartAll(); err != nil {
		list.StopAll()
		return errs.ToError(err)
	}

	waitErr := list.WaitAll()
	list.StopAll()
	if waitErr != nil {
		return errs.ToError(waitErr)
	}
	return nil
}

// logFingerprintTiers prints the four MetaFingerprint tier digests at
// DEBUG level only, never the composed id= string at the always-visible
// USERMSG level: the composed value is sent to the Tang server and is
// otherwise harmless to show once a caller has opted into debugging, but
// it is still not something we print on an ordinary, non-debug run.
func logFingerprintTiers(sink *ui.Sink) {
	tiers := fingerprint.Collect()
	sink.Debug("fingerprint persistent=%s", tiers.Persistent)
	sink.Debug("fingerprint semi-persistent=%s", tiers.SemiPersistent)
	sink.Debug("fingerprint semi-volatile=%s", tiers.SemiVolatile)
	sink.Debug("fingerprint volatile=%s", tiers.Volatile)
}

// resolveConfig implements the input-selection policy of §6: --cfg takes
// precedence over LATCHYCFG, which takes precedence over stdin. When the
// configuration ultimately comes from stdin and its first non-whitespace
// byte is neither '{' nor '[', the implicit STDIN->STDOUT configuration is
// used instead and the already-read stdin bytes are returned so the
// caller can hand them straight to the asset that will consume them,
// without a second read of os.Stdin.
func resolveConfig(c *cli.Context) ([]config.AssetConfig, []byte, error) {
	if explicit := c.String("cfg"); explicit != "" {
		list, err := config.Parse([]byte(explicit))
		return list, nil, err
	}

	if envVal := os.Getenv(envCfg); envVal != "" {
		list, err := config.Parse([]byte(envVal))
		return list, nil, err
	}

	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return nil, nil, errs.NewConfigInvalid("error reading stdin: %v", err)
	}

	trimmed := strings.TrimSpace(string(data))
	if trimmed != "" && (trimmed[0] == '{' || trimmed[0] == '[') {
		list, err := config.Parse(data)
		return list, nil, err
	}

	return config.Implicit(), data, nil
}
