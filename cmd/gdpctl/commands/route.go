package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/netip"
	"time"

	"github.com/spf13/cobra"

	"github.com/dantte-lp/gdp-router/internal/config"
	"github.com/dantte-lp/gdp-router/internal/gdp"
	"github.com/dantte-lp/gdp-router/internal/netio"
	"github.com/dantte-lp/gdp-router/internal/rib"
	"github.com/dantte-lp/gdp-router/internal/routes"
)

// queryTimeout bounds how long "route query" waits for a RibReply before
// giving up.
const queryTimeout = 5 * time.Second

var (
	selfNameHex string
	selfAddr    string
	ribAddr     string
	routesFile  string
)

func routeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "route",
		Short: "Inspect name->address routing",
	}

	cmd.AddCommand(routeQueryCmd())
	cmd.AddCommand(routeListCmd())

	return cmd
}

// --- route query ---

func routeQueryCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "query <name>",
		Short: "Send a RibGet for <name> to a RIB node and print the resolved address",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runRouteQuery(args[0])
		},
	}

	c.Flags().StringVar(&selfNameHex, "self-name", "",
		"this client's GDP name, hex-encoded (required)")
	c.Flags().StringVar(&selfAddr, "self-addr", "",
		"this client's IPv4 address, used as the reply destination (required)")
	c.Flags().StringVar(&ribAddr, "rib-addr", gdp.RIBAddr.String(),
		"the RIB node's IPv4 address")

	return c
}

func runRouteQuery(nameHex string) error {
	if selfNameHex == "" || selfAddr == "" {
		return errors.New("--self-name and --self-addr are required")
	}

	key, err := gdp.ParseName(nameHex)
	if err != nil {
		return fmt.Errorf("parse name %q: %w", nameHex, err)
	}
	selfName, err := gdp.ParseName(selfNameHex)
	if err != nil {
		return fmt.Errorf("parse --self-name %q: %w", selfNameHex, err)
	}
	src, err := netip.ParseAddr(selfAddr)
	if err != nil {
		return fmt.Errorf("parse --self-addr %q: %w", selfAddr, err)
	}
	rib4, err := netip.ParseAddr(ribAddr)
	if err != nil {
		return fmt.Errorf("parse --rib-addr %q: %w", ribAddr, err)
	}

	cipher, err := (config.AEADConfig{KeyHex: aeadKeyHex, NonceHex: aeadNonceHex}).Cipher()
	if err != nil {
		return fmt.Errorf("build AEAD cipher: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	port, err := netio.NewRawEthernetPort("gdpctl", iface, cipher, nil, logger)
	if err != nil {
		return fmt.Errorf("open port on %s: %w", iface, err)
	}
	defer port.Close()

	selfEndpoint := gdp.Endpoint{MAC: clientMAC(selfName), IP: src, Port: 0}
	ribEndpoint := gdp.Endpoint{MAC: gdp.RIBMAC, IP: rib4, Port: gdp.RIBPort}

	query, err := rib.CreateRIBRequest(key, selfName, selfEndpoint, ribEndpoint)
	if err != nil {
		return fmt.Errorf("build RibGet: %w", err)
	}

	if err := port.Send([]*gdp.Packet{query}); err != nil {
		return fmt.Errorf("send RibGet: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	reply, err := awaitReply(ctx, port, key)
	if err != nil {
		return err
	}
	defer reply.Release()

	return printReply(key, reply)
}

// awaitReply polls port until it sees a RibReply or Nack addressed to key,
// or ctx expires.
func awaitReply(ctx context.Context, port netio.Port, key gdp.Name) (*gdp.Packet, error) {
	for {
		batch, err := port.Poll(ctx)
		if err != nil {
			return nil, fmt.Errorf("await reply: %w", err)
		}
		for _, pkt := range batch {
			isReply := pkt.Action() == gdp.ActionRibReply && pkt.Dst() == key
			if !isReply && pkt.Action() != gdp.ActionNack {
				pkt.Release()
				continue
			}
			return pkt, nil
		}
	}
}

func clientMAC(name gdp.Name) gdp.MACAddr {
	var mac gdp.MACAddr
	mac[0] = 0x02
	copy(mac[1:], name[:5])
	return mac
}

func printReply(key gdp.Name, reply *gdp.Packet) error {
	if reply.Action() == gdp.ActionNack {
		return fmt.Errorf("route query %s: RIB node replied with Nack", key)
	}

	data, err := reply.Data()
	if err != nil {
		return fmt.Errorf("route query %s: read reply data: %w", key, err)
	}
	if len(data) != 4 {
		return fmt.Errorf("route query %s: reply data must be 4 bytes, got %d", key, len(data))
	}
	addr := netip.AddrFrom4([4]byte(data))

	if outputFormat == "json" {
		enc := json.NewEncoder(cmdOut)
		return enc.Encode(map[string]string{"name": key.String(), "addr": addr.String()})
	}

	fmt.Fprintf(cmdOut, "%-70s  %s\n", key.String(), addr.String())
	return nil
}

// --- route list ---

func routeListCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "list",
		Short: "Print the static routes a node bootstraps from",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runRouteList()
		},
	}

	c.Flags().StringVar(&routesFile, "file", "routes.yaml", "path to the routes YAML file")

	return c
}

func runRouteList() error {
	f, err := routes.Load(routesFile)
	if err != nil {
		return fmt.Errorf("load routes file %s: %w", routesFile, err)
	}

	if outputFormat == "json" {
		enc := json.NewEncoder(cmdOut)
		return enc.Encode(f)
	}

	for _, e := range f.Routes {
		fmt.Fprintf(cmdOut, "%-70s  %s\n", e.Name, e.Addr)
	}
	if f.DefaultRoute != "" {
		fmt.Fprintf(cmdOut, "default_route: %s\n", f.DefaultRoute)
	}
	return nil
}
