// SPDX-License-Identifier:Apache-2.0

package adminshell

import (
	"bytes"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/openperouter/bgpspeaker/internal/speaker"
	"github.com/openperouter/bgpspeaker/internal/status"
)

const helpText = `Available commands:
  help            show this message
  show neighbors  list the configured neighbors
  show vrfs       list the configured vrfs
  show routes     list the advertised routes
  show status     show the outcome of the last configuration
  quit, exit      close the session
`

// EngineProvider returns the running engine, nil when BGP is not configured.
type EngineProvider func() speaker.Engine

type executor struct {
	engine EngineProvider
	status status.StatusReader
}

// execute runs a single command line. quit is true when the session must
// be closed.
func (e *executor) execute(line string) (output string, quit bool) {
	args := strings.Fields(line)
	if len(args) == 0 {
		return "", false
	}

	switch args[0] {
	case "help", "?":
		return helpText, false
	case "quit", "exit":
		return "", true
	case "show":
		if len(args) != 2 {
			return "usage: show neighbors|vrfs|routes|status\n", false
		}
		return e.show(args[1]), false
	}
	return fmt.Sprintf("unknown command %q, type help for the list of commands\n", args[0]), false
}

func (e *executor) show(what string) string {
	if what == "status" {
		return e.showStatus()
	}

	engine := e.engine()
	if engine == nil {
		return "speaker is not running\n"
	}

	var buf bytes.Buffer
	writer := tabwriter.NewWriter(&buf, 2, 0, 3, ' ', 0)
	switch what {
	case "neighbors":
		fmt.Fprintln(writer, "ADDRESS\tREMOTE AS\tPORT\tFAMILIES\tCONNECT MODE")
		for _, n := range engine.Neighbors() {
			fmt.Fprintf(writer, "%s\t%d\t%d\t%s\t%s\n", n.Address, n.RemoteAS, n.RemotePort, families(n.EnableIPv4, n.EnableIPv6, n.EnableEVPN), n.ConnectMode)
		}
	case "vrfs":
		fmt.Fprintln(writer, "ROUTE DIST\tFAMILY\tIMPORT\tEXPORT")
		for _, v := range engine.VRFs() {
			fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n", v.RouteDist, v.RouteFamily, strings.Join(v.ImportRTs, ","), strings.Join(v.ExportRTs, ","))
		}
	case "routes":
		fmt.Fprintln(writer, "FAMILY\tROUTE DIST\tPREFIX\tTYPE\tNEXT HOP\tLABEL")
		for _, r := range engine.Routes() {
			fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%s\n", r.Family, dash(r.RouteDist), dash(r.Prefix), dash(r.RouteType), dash(r.NextHop), label(r.Label))
		}
	default:
		return fmt.Sprintf("unknown resource %q\n", what)
	}
	_ = writer.Flush()
	return buf.String()
}

func (e *executor) showStatus() string {
	if e.status == nil {
		return "status is not available\n"
	}
	summary := e.status.GetStatusSummary()

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "applied: %d\nfailed: %d\n", summary.AppliedResources, len(summary.FailedResources))
	if !summary.LastUpdateTime.IsZero() {
		fmt.Fprintf(&buf, "last update: %s\n", summary.LastUpdateTime.Format(time.RFC3339))
	}
	if len(summary.FailedResources) == 0 {
		return buf.String()
	}

	writer := tabwriter.NewWriter(&buf, 2, 0, 3, ' ', 0)
	fmt.Fprintln(writer, "KIND\tNAME\tERROR")
	for _, f := range summary.FailedResources {
		fmt.Fprintf(writer, "%s\t%s\t%s\n", f.Kind, f.Name, f.ErrorMessage)
	}
	_ = writer.Flush()
	return buf.String()
}

func families(ipv4, ipv6, evpn bool) string {
	var res []string
	if ipv4 {
		res = append(res, "ipv4")
	}
	if ipv6 {
		res = append(res, "ipv6")
	}
	if evpn {
		res = append(res, "evpn")
	}
	if len(res) == 0 {
		return "-"
	}
	return strings.Join(res, ",")
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func label(l uint32) string {
	if l == 0 {
		return "-"
	}
	return fmt.Sprint(l)
}
