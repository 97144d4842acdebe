// Command token mints API tokens for storefront integrations and operators.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/erp/odoosync/internal/domain/ordersync"
	"github.com/erp/odoosync/internal/infrastructure/auth"
	"github.com/erp/odoosync/internal/infrastructure/config"
	"github.com/erp/odoosync/internal/infrastructure/logger"
)

func main() {
	userID := flag.String("user-id", "", "User id recorded in the activity log (required)")
	username := flag.String("username", "", "Username recorded in the activity log")
	displayName := flag.String("name", "", "Display name recorded in the activity log")
	roles := flag.String("roles", "", "Comma separated roles, e.g. admin")
	source := flag.String("source", string(ordersync.TriggerRESTAPI), "Trigger source the caller acts as")
	ttl := flag.Duration("ttl", 30*24*time.Hour, "Token lifetime")
	flag.Parse()

	log := logger.New(&logger.Config{
		Level:      "info",
		Format:     "console",
		Output:     "stderr",
		TimeFormat: "2006-01-02 15:04:05",
	})
	defer func() { _ = log.Sync() }()

	if *userID == "" {
		flag.Usage()
		os.Exit(1)
	}
	if !ordersync.TriggerSource(*source).IsValid() {
		log.Fatal("Unknown trigger source", zap.String("source", *source))
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}
	svc, err := auth.NewJWTService(cfg.JWT)
	if err != nil {
		log.Fatal("Failed to create JWT service", zap.Error(err))
	}

	var roleList []string
	for _, r := range strings.Split(*roles, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roleList = append(roleList, r)
		}
	}

	token, expires, err := svc.Issue(auth.IssueInput{
		User: ordersync.ActivityUser{
			ID:          *userID,
			Username:    *username,
			DisplayName: *displayName,
			Roles:       roleList,
		},
		Source: ordersync.TriggerSource(*source),
		TTL:    *ttl,
	})
	if err != nil {
		log.Fatal("Failed to issue token", zap.Error(err))
	}

	log.Info("Token issued", zap.String("user_id", *userID), zap.Time("expires_at", expires))
	fmt.Println(token)
}
