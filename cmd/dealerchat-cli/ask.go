package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/floorservicemsk/dealerchat/internal/chat"
)

var askCmd = &cobra.Command{
	Use:   "ask <вопрос>",
	Short: "Ask a question through the full chat pipeline",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.Join(args, " ")

		p := newPipeline()
		defer p.close()

		var spin *spinner.Spinner
		if !outputJSON {
			spin = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
			spin.Suffix = " обрабатываю вопрос..."
			spin.Start()
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		resp, err := p.orchestrator.Handle(ctx, chat.Request{
			Message:   question,
			SessionID: uuid.NewString(),
		})

		if spin != nil {
			spin.Stop()
		}
		if err != nil {
			return err
		}

		if outputJSON {
			return json.NewEncoder(os.Stdout).Encode(resp)
		}

		printAnswer(resp)
		return nil
	},
}

func printAnswer(resp chat.Response) {
	if payload, ok := chat.DecodePayload(resp.Content); ok {
		printPayload(payload)
	} else {
		fmt.Println(resp.Content)
	}

	if len(resp.Attachments) > 0 {
		fmt.Println()
		printInfo("вложения:")
		for _, a := range resp.Attachments {
			fmt.Printf("  [%s] %s %s\n", a.Type, a.Name, a.URL)
		}
	}
	if resp.Cached {
		printInfo("ответ из кеша")
	}
}

func printPayload(payload chat.Payload) {
	bold := color.New(color.Bold)
	switch payload.Type {
	case chat.PayloadProductInfo:
		p := payload.Product
		bold.Printf("%s (артикул %s)\n", p.Name, p.VendorCode)
		fmt.Printf("Цена: %s\n", p.Price)
		if p.Description != "" {
			fmt.Println(p.Description)
		}
		for k, v := range p.Params {
			fmt.Printf("  %s: %s\n", k, v)
		}
	case chat.PayloadDownloadLink:
		bold.Println(payload.Link.Title)
		fmt.Println(payload.Link.URL)
	case chat.PayloadMultiDownloadLinks:
		for _, link := range payload.Links {
			bold.Println(link.Title)
			fmt.Println(link.URL)
		}
	}
}
