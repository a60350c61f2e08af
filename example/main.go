// Package main demonstrates basic usage of the mal library.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/codeGROOVE-dev/mal"
)

func main() {
	flag.Parse()

	if len(flag.Args()) == 0 {
		fmt.Fprintf(os.Stderr, "Usage: %s <username>\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Example: %s satou\n", os.Args[0])
		os.Exit(1)
	}

	ctx := context.Background()

	session, err := mal.New(ctx)
	if err != nil {
		log.Fatalf("Failed to create session: %v", err)
	}

	user, err := session.User(flag.Args()[0])
	if err != nil {
		log.Fatalf("Invalid username: %v", err)
	}

	joined, err := user.JoinDate(ctx)
	if err != nil {
		log.Fatalf("Failed to load profile: %v", err)
	}
	location, _ := user.Location(ctx)
	online, _ := user.LastOnline(ctx)
	about, _ := user.About(ctx)

	fmt.Printf("Username:    %s\n", user.Username())
	fmt.Printf("Joined:      %s\n", joined.Format("Jan 2, 2006"))
	fmt.Printf("Location:    %s\n", location)
	fmt.Printf("Last online: %s\n", online.Format("Jan 2, 2006 3:04 PM"))
	fmt.Printf("About:       %s\n", about)

	if favorites, err := user.FavoriteAnime(ctx); err == nil {
		fmt.Println("Favorite anime:")
		for _, a := range favorites {
			fmt.Printf("  - %s (https://myanimelist.net/anime/%d)\n", a.Title(), a.ID())
		}
	}
}
