// Package main provides a CI-friendly end-to-end smoke test for a running
// Chirp server. It drives two real accounts through the public surface:
//
//   - signup + cookie session
//   - realtime connect and presence fanout
//   - HTTP send -> newMessage push to the receiver only
//   - history fetch and sidebar listing
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"slices"
	"time"

	"chirp/client"
)

func main() {
	var (
		baseURL = flag.String("url", "http://127.0.0.1:8080", "Chirp server base URL")
		timeout = flag.Duration("timeout", 7*time.Second, "Per-step timeout")
		verbose = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	root := context.Background()
	suffix := time.Now().UnixNano()

	ada := mustSession(root, *baseURL, "Smoke Ada", fmt.Sprintf("smoke-ada-%d@example.com", suffix), *timeout)
	defer ada.sess.Disconnect()
	bob := mustSession(root, *baseURL, "Smoke Bob", fmt.Sprintf("smoke-bob-%d@example.com", suffix), *timeout)
	defer bob.sess.Disconnect()

	if *verbose {
		fmt.Printf("accounts: ada=%s bob=%s\n", ada.userID, bob.userID)
	}

	mustPresenceContains(ada, *timeout, ada.userID, bob.userID)
	mustPresenceContains(bob, *timeout, ada.userID, bob.userID)

	// Bob opens Ada's thread and subscribes, then Ada sends over HTTP.
	mustSelect(root, bob, ada.userID, *timeout)
	mustSelect(root, ada, bob.userID, *timeout)

	text := fmt.Sprintf("smoke %d", suffix)
	sendCtx, cancel := context.WithTimeout(root, *timeout)
	sent, err := ada.store.SendMessage(sendCtx, text, "")
	cancel()
	if err != nil {
		fatalf("send: %v", err)
	}

	mustThreadContains(bob, sent.ID, *timeout)

	// The sender's thread is fed from the HTTP response, not the push.
	if !threadHas(ada, sent.ID) {
		fatalf("sender thread missing the sent message")
	}

	mustSidebarContains(root, ada, bob.userID, *timeout)

	fmt.Printf("OK: ada=%s bob=%s msg=%s\n", ada.userID, bob.userID, sent.ID)
}

type smokeUser struct {
	sess   *client.Session
	store  *client.ChatStore
	userID string
}

func mustSession(root context.Context, baseURL, fullName, email string, timeout time.Duration) *smokeUser {
	api, err := client.NewAPI(baseURL)
	if err != nil {
		fatalf("new api: %v", err)
	}
	sess := client.NewSession(api)

	ctx, cancel := context.WithTimeout(root, timeout)
	defer cancel()

	u, err := sess.Signup(ctx, fullName, email, "smoke-secret")
	if err != nil {
		fatalf("signup %s: %v", email, err)
	}
	if err := sess.Connect(ctx); err != nil {
		fatalf("connect %s: %v", email, err)
	}

	store := client.NewChatStore(api, sess)
	if err := store.SubscribeToPresence(); err != nil {
		fatalf("subscribe presence %s: %v", email, err)
	}
	if err := store.SubscribeToMessages(); err != nil {
		fatalf("subscribe messages %s: %v", email, err)
	}

	return &smokeUser{sess: sess, store: store, userID: u.ID}
}

func mustSelect(root context.Context, u *smokeUser, peerID string, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(root, timeout)
	defer cancel()
	if err := u.store.SetSelectedPeer(ctx, peerID); err != nil {
		fatalf("select peer: %v", err)
	}
}

func mustPresenceContains(u *smokeUser, timeout time.Duration, userIDs ...string) {
	deadline := time.Now().Add(timeout)
	for {
		online := u.store.OnlineUsers()
		ok := true
		for _, id := range userIDs {
			if !slices.Contains(online, id) {
				ok = false
				break
			}
		}
		if ok {
			return
		}
		if time.Now().After(deadline) {
			fatalf("presence timeout: online=%v want=%v", online, userIDs)
		}
		time.Sleep(25 * time.Millisecond)
	}
}

func mustThreadContains(u *smokeUser, msgID string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for {
		if threadHas(u, msgID) {
			return
		}
		if time.Now().After(deadline) {
			fatalf("thread timeout: message %s never arrived", msgID)
		}
		time.Sleep(25 * time.Millisecond)
	}
}

func threadHas(u *smokeUser, msgID string) bool {
	for _, m := range u.store.Messages() {
		if m.ID == msgID {
			return true
		}
	}
	return false
}

func mustSidebarContains(root context.Context, u *smokeUser, peerID string, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(root, timeout)
	defer cancel()

	users, err := u.store.LoadUsers(ctx)
	if err != nil {
		fatalf("load users: %v", err)
	}
	for _, candidate := range users {
		if candidate.ID == peerID {
			return
		}
	}
	fatalf("sidebar missing peer %s", peerID)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "FAIL: "+format+"\n", args...)
	os.Exit(1)
}
