package main

import (
	"context"

	"smsgate-backend/cmd/smsgate-cli/commands"
	"smsgate-backend/lib/telemetry"
)

func main() {
	telemetry.SetupFromEnv(context.Background(), "smsgate-cli")
	telemetry.InitSlog(true)
	commands.ExecuteContext(context.Background())
}
