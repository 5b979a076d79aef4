package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/navis-app/navis-api/internal/route"
)

const cliSession = "cli"

var routeCmd = &cobra.Command{
	Use:   "route <origin> <destination>",
	Short: "Compute a route and classify the points along it",
	Long:  "Endpoints are either \"lat,lng\" or address text, which is geocoded. Put -- before a negative coordinate.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		origin, err := route.ParseEndpoint(args[0])
		if err != nil {
			return err
		}
		dest, err := route.ParseEndpoint(args[1])
		if err != nil {
			return err
		}

		env, err := initApp(ctx, nil)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Routes.AttachMap(ctx, cliSession); err != nil {
			return eris.Wrap(err, "attach map")
		}
		res, err := env.Routes.ComputeRoute(ctx, cliSession, origin, dest)
		if err != nil {
			return eris.Wrap(err, "compute route")
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSON(os.Stdout, res)
		}
		formatRoute(os.Stdout, res)
		return nil
	},
}

func formatRoute(w io.Writer, res *route.Result) {
	fmt.Fprintf(w, "%s -> %s  %.1f km  %.0f min\n",
		res.Origin, res.Destination, res.DistanceMeters/1000, res.DurationSeconds/60)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tPOINT\tLEVEL\tZONE")
	for i, p := range res.Points {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i+1, p.Coordinate, p.Level, p.ZoneName)
	}
	_ = tw.Flush()
}

func init() {
	routeCmd.Flags().Bool("json", false, "print the result as JSON")
	rootCmd.AddCommand(routeCmd)
}
