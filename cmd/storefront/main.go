// Command storefront は家電ストアのコマースAPIサーバー。
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/hitoshi/storefront/internal/app"
)

func main() {
	if err := app.Run(context.Background(), os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
