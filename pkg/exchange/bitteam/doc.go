// Package bitteam implements the BitTeam exchange connector.
// It maps BitTeam's REST API onto the canonical model in pkg/core.
//
// The package includes:
//   - Protocol: request building, envelope unwrapping and error mapping
//   - Signer: nonce stamping and HMAC-SHA256 signing of private requests
//   - Normalizer: conversion of provider records into canonical types
//   - Exchange: the connector facade, backed by a Market Cache
//
// Example usage:
//
//	ex, err := bitteam.New(core.DefaultConfig("bitteam"))
//	markets, err := ex.LoadMarkets(ctx, false)
//	ticker, err := ex.FetchTicker(ctx, "ETH/USDT")
package bitteam
