package main

import (
	"fmt"

	"github.com/ochairo/ripbench/internal/domain/entities"
)

func printSweepScore(title string, score entities.SweepScore) {
	fmt.Printf("%s\n", colorHeader(title))
	fmt.Printf("   Binaries:        %d\n", score.Binaries)
	fmt.Printf("   Functions:       %d\n", score.TotalFunctions())
	fmt.Printf("   True positives:  %d\n", score.Counts.TruePositives)
	fmt.Printf("   False positives: %d\n", score.Counts.FalsePositives)
	fmt.Printf("   False negatives: %d\n", score.Counts.FalseNegatives)
	fmt.Printf("   Precision:       %s\n", colorRatio(score.Micro.Precision))
	fmt.Printf("   Recall:          %s\n", colorRatio(score.Micro.Recall))
	fmt.Printf("   F1:              %s\n", colorRatio(score.Micro.F1))
	fmt.Printf("   %s\n", colorAddr("macro (reference only): P=%s R=%s F1=%s",
		score.Macro.Precision, score.Macro.Recall, score.Macro.F1))
	if score.UndefinedBinaries > 0 {
		fmt.Printf("   %s %d binaries have undefined ratios\n", colorWarn("note:"), score.UndefinedBinaries)
	}
	fmt.Printf("   Wall time:       %v nonstripped, %v stripped\n",
		score.NonstrippedWallTime, score.StrippedWallTime)
}

func colorRatio(r entities.Ratio) string {
	switch {
	case !r.Defined:
		return colorWarn(r.String())
	case r.Value >= 0.9:
		return colorGood(r.String())
	case r.Value < 0.5:
		return colorBad(r.String())
	default:
		return r.String()
	}
}

func printFunctions(label string, functions []entities.FunctionObservation) {
	fmt.Printf("   %s (%d)\n", label, len(functions))
	for _, fn := range functions {
		fmt.Printf("     %s %s\n", colorAddr("%-18s", fn.Address), fn.Name)
	}
}
