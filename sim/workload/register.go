// register.go wires GenerateLoad into the sim package's registration variable
// (GenerateLoadFunc). This init() runs when any package imports sim/workload,
// breaking the import cycle between sim/ (owner of SimulationContext) and
// sim/workload/ (load patterns). Test code in package sim uses
// workload_import_test.go for the blank import.
package workload

import "github.com/autoscale-sim/autoscale-sim/sim"

func init() {
	sim.GenerateLoadFunc = GenerateLoad
}
