// Package domain contains core concepts of the chat system.
// This file defines the Crush entity as it round-trips through profile metadata.
package domain

type Crush struct {
	ID              string `mapstructure:"id"`
	InstagramHandle string `mapstructure:"instagramHandle"`
}
