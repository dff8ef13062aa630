// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package database

import (
	"context"
	"testing"

	"github.com/tomtom215/portico/internal/models"
)

func TestPostsAndReactions(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")

	first := &models.Post{AuthorID: alice.ID, Content: "Fika at three"}
	second := &models.Post{AuthorID: bob.ID, Content: "New printer on floor two"}
	checkNoError(t, db.CreatePost(ctx, first))
	checkNoError(t, db.CreatePost(ctx, second))

	t.Run("toggle adds then removes", func(t *testing.T) {
		added, counts, err := db.ToggleReaction(ctx, first.ID, bob.ID, "👍")
		checkNoError(t, err)
		if !added || len(counts) != 1 || counts[0].Count != 1 || !counts[0].Reacted {
			t.Fatalf("added=%v counts=%+v", added, counts)
		}

		_, _, err = db.ToggleReaction(ctx, first.ID, alice.ID, "👍")
		checkNoError(t, err)
		added, counts, err = db.ToggleReaction(ctx, first.ID, bob.ID, "👍")
		checkNoError(t, err)
		if added || len(counts) != 1 || counts[0].Count != 1 || counts[0].Reacted {
			t.Fatalf("after removal added=%v counts=%+v", added, counts)
		}

		_, _, err = db.ToggleReaction(ctx, 999, bob.ID, "👍")
		checkErrorIs(t, err, ErrNotFound)
	})

	t.Run("feed is newest first with viewer flags", func(t *testing.T) {
		page, err := db.ListPosts(ctx, models.ListOptions{}, alice.ID)
		checkNoError(t, err)
		checkLen(t, "posts", len(page.Items), 2)
		checkInt64Equal(t, "first item", page.Items[0].ID, second.ID)
		checkStringEqual(t, "author name", page.Items[1].AuthorName, "alice")
		if r := page.Items[1].Reactions; len(r) != 1 || !r[0].Reacted {
			t.Errorf("alice's view of reactions: %+v", r)
		}
		if len(page.Items[0].Reactions) != 0 {
			t.Errorf("second post has reactions %+v", page.Items[0].Reactions)
		}
	})

	t.Run("search", func(t *testing.T) {
		page, err := db.ListPosts(ctx, models.ListOptions{Search: "printer"}, alice.ID)
		checkNoError(t, err)
		if page.Total != 1 {
			t.Errorf("total = %d", page.Total)
		}
	})

	t.Run("update and delete", func(t *testing.T) {
		checkNoError(t, db.UpdatePost(ctx, first.ID, "Fika at four", nil))
		got, err := db.GetPost(ctx, first.ID, bob.ID)
		checkNoError(t, err)
		checkStringEqual(t, "content", got.Content, "Fika at four")

		checkNoError(t, db.DeletePost(ctx, first.ID))
		reactions, err := db.ListReactions(ctx, first.ID)
		checkNoError(t, err)
		checkLen(t, "reactions after delete", len(reactions), 0)
		checkErrorIs(t, db.DeletePost(ctx, first.ID), ErrNotFound)
	})
}

func TestMessages(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	carol := createTestUser(t, db, "carol")

	send := func(from int64, to *int64, channel, content string) *models.Message {
		t.Helper()
		m := &models.Message{SenderID: from, RecipientID: to, Channel: channel, Content: content}
		checkNoError(t, db.CreateMessage(ctx, m))
		return m
	}

	send(alice.ID, &bob.ID, "", "hi bob")
	send(bob.ID, &alice.ID, "", "hi alice")
	send(alice.ID, &bob.ID, "ignored", "lunch?")
	send(carol.ID, &bob.ID, "", "meeting moved")
	general := send(alice.ID, nil, "", "hello everyone")
	send(bob.ID, nil, "sales", "Q3 numbers")

	checkStringEqual(t, "default channel", general.Channel, models.DefaultChannel)

	t.Run("conversation oldest first", func(t *testing.T) {
		msgs, err := db.Conversation(ctx, bob.ID, alice.ID, models.ListOptions{})
		checkNoError(t, err)
		checkLen(t, "messages", len(msgs), 3)
		checkStringEqual(t, "first", msgs[0].Content, "hi bob")
		checkStringEqual(t, "last", msgs[2].Content, "lunch?")
		checkStringEqual(t, "direct has no channel", msgs[2].Channel, "")
	})

	t.Run("conversation pages back from newest", func(t *testing.T) {
		msgs, err := db.Conversation(ctx, bob.ID, alice.ID, models.ListOptions{Limit: 2})
		checkNoError(t, err)
		checkLen(t, "messages", len(msgs), 2)
		checkStringEqual(t, "first", msgs[0].Content, "hi alice")
	})

	t.Run("channels", func(t *testing.T) {
		msgs, err := db.ChannelMessages(ctx, "", models.ListOptions{})
		checkNoError(t, err)
		checkLen(t, "general", len(msgs), 1)
		msgs, err = db.ChannelMessages(ctx, "sales", models.ListOptions{})
		checkNoError(t, err)
		checkLen(t, "sales", len(msgs), 1)
	})

	t.Run("unread and mark read", func(t *testing.T) {
		counts, err := db.UnreadCounts(ctx, bob.ID)
		checkNoError(t, err)
		checkLen(t, "senders", len(counts), 2)
		checkInt64Equal(t, "from alice", int64(counts[0].Count), 2)

		n, err := db.MarkRead(ctx, bob.ID, alice.ID)
		checkNoError(t, err)
		checkInt64Equal(t, "marked", n, 2)

		counts, err = db.UnreadCounts(ctx, bob.ID)
		checkNoError(t, err)
		checkLen(t, "senders", len(counts), 1)
		checkInt64Equal(t, "from carol", counts[0].SenderID, carol.ID)
	})

	t.Run("unknown recipient", func(t *testing.T) {
		ghost := int64(999)
		err := db.CreateMessage(ctx, &models.Message{SenderID: alice.ID, RecipientID: &ghost, Content: "boo"})
		checkErrorIs(t, err, ErrNotFound)
	})
}
