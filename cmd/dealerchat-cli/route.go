package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/floorservicemsk/dealerchat/internal/routing"
)

var routeCmd = &cobra.Command{
	Use:   "route <сообщение>",
	Short: "Show how a message would be routed, without calling anything",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		message := strings.Join(args, " ")

		if reply, ok := routing.InstantResponse(message); ok {
			if outputJSON {
				return json.NewEncoder(os.Stdout).Encode(map[string]string{
					"path":     "instant",
					"response": reply,
				})
			}
			color.New(color.FgGreen).Println("мгновенный ответ:")
			fmt.Println(reply)
			return nil
		}

		decision := routing.AnalyzeQuestion(message)
		if outputJSON {
			return json.NewEncoder(os.Stdout).Encode(decision)
		}

		fmt.Printf("useAI:      %v\n", decision.UseAI)
		fmt.Printf("model:      %s\n", decision.Model)
		fmt.Printf("reason:     %s\n", decision.Reason)
		fmt.Printf("confidence: %.2f\n", decision.Confidence)
		return nil
	},
}
