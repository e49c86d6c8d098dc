package instance

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"toptw/internal/opt"
)

// Format writes the node table of p followed by the fleet summary.
func Format(w io.Writer, p *opt.Problem) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "Nodes: %d\n", p.POICount()+1)
	fmt.Fprintln(tw, "CUST NO.\tXCOORD.\tYCOORD.\tSCORE\tREADY TIME\tDUE DATE\tSERVICE TIME\t")
	for _, n := range p.Nodes() {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t\n", n.ID, num(n.X), num(n.Y), num(n.Score), num(n.ReadyTime), num(n.DueTime), num(n.ServiceTime))
	}
	fmt.Fprintf(tw, "Vehicles: %d\n", p.VehicleCount())
	fmt.Fprintf(tw, "Max route duration: %s\n", num(p.MaxRouteDuration()))
	return tw.Flush()
}

func num(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
