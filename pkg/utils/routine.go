// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package utils

import (
	"context"
	"log"
	"runtime/debug"
)

// Go runs fn on a new goroutine and recovers any panic, so a failure inside
// one session's handler never terminates the process or other sessions.
func Go(ctx context.Context, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("recovered panic in background routine: %v\n%s", r, debug.Stack())
			}
		}()
		fn()
	}()
}
