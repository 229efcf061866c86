// Package worker — peer, выполняющий tasks за подписанные платежи.
package worker
