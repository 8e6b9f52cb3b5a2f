package mu

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFindCommand(t *testing.T) {
	got := findCommand(`maildir:"/Inbox" AND subject:a\b`, DefaultFindOptions())
	assert.Equal(t,
		`(find :query "maildir:\"/Inbox\" AND subject:a\\b" :sortfield :date :maxnum 500 :threads t :descending t)`,
		got)

	got = findCommand(`msgid:x@y`, ThreadFindOptions())
	assert.Equal(t,
		`(find :query "msgid:x@y" :sortfield :date :maxnum 500 :threads t :include-related t)`,
		got)

	got = findCommand("", FindOptions{MaxNum: 10})
	assert.Equal(t, `(find :query "" :sortfield :date :maxnum 10)`, got)
}

func TestMoveCommand(t *testing.T) {
	dir := "/Archive"
	flags := "FS"

	assert.Equal(t, `(move :docid 7 :rename t)`, moveCommand(7, nil, nil))
	assert.Equal(t, `(move :docid 7 :maildir "/Archive" :rename t)`, moveCommand(7, &dir, nil))
	assert.Equal(t, `(move :docid 7 :flags "FS" :rename t)`, moveCommand(7, nil, &flags))
	assert.Equal(t, `(move :docid 7 :maildir "/Archive" :flags "FS" :rename t)`, moveCommand(7, &dir, &flags))
}

func TestCommandName(t *testing.T) {
	assert.Equal(t, "ping command", commandName("(ping)"))
	assert.Equal(t, "find command", commandName(`(find :query "x")`))
}
