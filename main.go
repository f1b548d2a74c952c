// RTLOOK - An rtl-sdr receiver for on-off keyed sensors in the 433MHz ISM band.
// Copyright (C) 2015 Douglas Hall
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.


package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	log "github.com/sirupsen/logrus"

	"github.com/bemasher/rtlook/config"

	_ "github.com/bemasher/rtlook/acurite"
)

var (
	buildTag   = "dev"     // v#.#.#
	buildDate  = "unknown" // date -u '+%Y-%m-%d'
	commitHash = "unknown" // git rev-parse HEAD
)

// Globals are the options shared by every command. Persistent settings
// live in the config file.
type Globals struct {
	Config  string `help:"Config file (HCL, YAML or TOML). Searched for when omitted." type:"path" short:"c"`
	Verbose bool   `help:"Log discarded bursts and messages." short:"v"`

	cfg config.Config
}

type CLI struct {
	Globals

	Capture CaptureCmd `cmd:"" help:"Detect pulses from a radio and multicast bursts."`
	Decode  DecodeCmd  `cmd:"" help:"Decode bursts into sensor reports."`
	Log     LogCmd     `cmd:"" help:"Record multicast bursts to an archive."`
	Replay  ReplayCmd  `cmd:"" help:"Multicast the bursts of an archive."`
	Analyze AnalyzeCmd `cmd:"" help:"Cluster the pulse timings of recorded bursts."`
	Version VersionCmd `cmd:"" help:"Display build date and commit hash."`
}

type VersionCmd struct{}

func (VersionCmd) Run(*Globals) error {
	fmt.Println("Build Tag: ", buildTag)
	fmt.Println("Build Date:", buildDate)
	fmt.Println("Commit:    ", commitHash)
	return nil
}

func init() {
	log.SetOutput(os.Stderr)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("rtlook"),
		kong.Description("An rtl-sdr receiver for on-off keyed sensors in the 433MHz ISM band."),
		kong.UsageOnError(),
	)

	if ctx.Command() != "version" {
		cfg, err := config.Load(cli.Config)
		ctx.FatalIfErrorf(err)
		ctx.FatalIfErrorf(cfg.Log.Apply())
		cli.cfg = cfg
	}

	if cli.Verbose {
		log.SetLevel(log.DebugLevel)
	}

	ctx.FatalIfErrorf(ctx.Run(&cli.Globals))
}
