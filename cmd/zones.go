package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/navis-app/navis-api/internal/geo"
)

var zonesCmd = &cobra.Command{
	Use:   "zones",
	Short: "Inspect the risk-zone catalog",
}

// -- zones list --

var zonesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalog zones",
	RunE: func(cmd *cobra.Command, _ []string) error {
		catalog, err := loadCatalog(cfg.Zones.CatalogPath)
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSON(os.Stdout, catalog.Zones())
		}
		formatZones(os.Stdout, catalog.Zones())
		return nil
	},
}

// -- zones classify --

var zonesClassifyCmd = &cobra.Command{
	Use:   "classify <lat> <lng>",
	Short: "Classify a coordinate against the catalog",
	Long:  "Classify a coordinate against the catalog. Put -- before negative values: navis zones classify -- -23.5412 -46.6386",
	Args:  cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		p, err := parseCoordinate(args[0], args[1])
		if err != nil {
			return err
		}

		catalog, err := loadCatalog(cfg.Zones.CatalogPath)
		if err != nil {
			return err
		}
		res := geo.NewClassifier(catalog).Classify(p)
		fmt.Fprintf(os.Stdout, "%s\t%s\t%s\n", p, res.Level, res.ZoneName)
		return nil
	},
}

func parseCoordinate(latArg, lngArg string) (geo.Coordinate, error) {
	lat, latErr := strconv.ParseFloat(latArg, 64)
	lng, lngErr := strconv.ParseFloat(lngArg, 64)
	p := geo.Coordinate{Lat: lat, Lng: lng}
	if latErr != nil || lngErr != nil || !p.Valid() {
		return geo.Coordinate{}, eris.Errorf("invalid coordinate %q,%q", latArg, lngArg)
	}
	return p, nil
}

func formatZones(w io.Writer, zones []geo.RiskZone) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tLEVEL\tLAT\tLNG")
	for _, z := range zones {
		fmt.Fprintf(tw, "%s\t%s\t%.4f\t%.4f\n", z.Name, z.Level, z.Coordinate.Lat, z.Coordinate.Lng)
	}
	_ = tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(v), "encode json")
}

func init() {
	zonesListCmd.Flags().Bool("json", false, "print zones as JSON")

	zonesCmd.AddCommand(zonesListCmd, zonesClassifyCmd)
	rootCmd.AddCommand(zonesCmd)
}
