package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/voicedesk/voicedesk/pkg/catalog"
	"github.com/voicedesk/voicedesk/pkg/transports"
	"github.com/voicedesk/voicedesk/pkg/transports/telnyx"
	"github.com/voicedesk/voicedesk/pkg/transports/twilio"
	"github.com/voicedesk/voicedesk/pkg/transports/vonage"
	"github.com/voicedesk/voicedesk/pkg/voicedesk"
)

func main() {
	configPath := flag.String("config", "config.yaml", "")
	businessID := flag.String("business", "", "")
	to := flag.String("to", "", "")
	from := flag.String("from", "", "")
	flag.Parse()
	if *businessID == "" || *to == "" {
		fmt.Println("usage: make_call -business=biz-1 -to=+15550001111 [-from=+15550002222] [-config=...]")
		os.Exit(1)
	}

	cfg, err := voicedesk.LoadConfig(*configPath)
	if err != nil {
		fmt.Println("config error:", err)
		os.Exit(1)
	}
	biz, ok := findBusiness(cfg, *businessID)
	if !ok {
		fmt.Println("unknown business:", *businessID)
		os.Exit(1)
	}

	dialer, sender, err := buildDialer(cfg, biz, *from)
	if err != nil {
		fmt.Println("dialer error:", err)
		os.Exit(1)
	}
	callID, err := dialer.Dial(context.Background(), *to, sender)
	if err != nil {
		fmt.Println("call error:", err)
		os.Exit(1)
	}
	fmt.Println("call_id:", callID)
}

func buildDialer(cfg voicedesk.Config, biz catalog.Business, from string) (transports.OutboundDialer, string, error) {
	publicURL := cfg.Server.PublicURL
	switch strings.ToLower(biz.Provider) {
	case "twilio":
		d := twilio.NewDialer(twilio.Config{
			BusinessID:  biz.ID,
			AccountSID:  biz.Credentials.TwilioAccountSID,
			AuthToken:   biz.Credentials.TwilioAuthToken,
			PhoneNumber: biz.Credentials.TwilioPhoneNumber,
			PublicURL:   publicURL,
		})
		return d, firstNonEmpty(from, biz.Credentials.TwilioPhoneNumber), nil
	case "vonage":
		d, err := vonage.NewDialer(vonage.Config{
			BusinessID:    biz.ID,
			ApplicationID: biz.Credentials.VonageApplicationID,
			PrivateKey:    biz.Credentials.VonagePrivateKey,
			PublicURL:     publicURL,
		})
		if err != nil {
			return nil, "", err
		}
		return d, firstNonEmpty(from, biz.Credentials.VonagePhoneNumber), nil
	case "telnyx":
		d := telnyx.Dialer{
			Client:       telnyx.NewClient(biz.Credentials.TelnyxAPIKey),
			ConnectionID: biz.Credentials.TelnyxConnectionID,
			WebhookURL:   strings.TrimRight(publicURL, "/") + "/telnyx/webhook",
		}
		return d, firstNonEmpty(from, biz.Credentials.TelnyxPhoneNumber), nil
	default:
		return nil, "", fmt.Errorf("outbound calls are not supported for provider %q", biz.Provider)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func findBusiness(cfg voicedesk.Config, id string) (catalog.Business, bool) {
	for _, b := range cfg.Businesses {
		if b.ID == id {
			return b, true
		}
	}
	return catalog.Business{}, false
}
