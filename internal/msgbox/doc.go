// Package msgbox is the message-box repository: channels, their bearer
// tokens, the per-channel message log, and the per-(message, token) status
// matrix, all kept in one Pebble keyspace.
//
// Writes go through WriteMessage, which under the channel's lock checks the
// locked and sequenced flags, assigns seq = head+1, and fans out one status
// row per live token in a single batch. Notification of committed writes is
// the caller's concern; the store never performs network I/O.
//
//	st := msgbox.New(db, msgbox.Options{Logger: logger})
//	ch, _ := st.CreateChannel(ctx, accountID, msgbox.ChannelCreate{Sequenced: true})
//	owner := ch.Tokens[0]
//	_, view, err := st.WriteMessage(ctx, msgbox.NewMessage{
//	    ChannelID: ch.ID, FromToken: owner.ID,
//	    ContentType: "application/json", Payload: []byte(`{}`),
//	})
//	switch {
//	case errors.Is(err, msgbox.ErrChannelLocked):
//	case errors.Is(err, msgbox.ErrSequencingFailure):
//	}
//	_ = view.Sequence
package msgbox
