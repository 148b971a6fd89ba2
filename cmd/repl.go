package main

import (
	"bufio"
	"context"
	"crush-chat/attachment"
	"crush-chat/composer"
	"crush-chat/domain"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
)

const help = `Commands:
  /open PEER          open the conversation with PEER
  /leave              leave the current conversation
  TEXT                type and send TEXT
  /type TEXT          replace the draft without sending
  /send               send the draft
  /emoji /pick E /dismiss
                      emoji picker
  /attach PATH        send a file
  /mic /release /cancel
                      record a voice message
  /receive TEXT       simulate a message from the peer
  /history            print the conversation
  /inbox              list conversations
  /crushes            list crushes
  /crush add HANDLE|URL
  /crush rm ID
  /stats              print counters
  /quit`

var (
	selfStyle   = color.New(color.FgGreen)
	peerStyle   = color.New(color.FgCyan)
	errorStyle  = color.New(color.FgRed)
	promptStyle = color.New(color.BgBlack, color.FgGreen)

	errQuit = stderrors.New("quit")
)

type repl struct {
	app      *application
	in       io.Reader
	out      io.Writer
	current  string
	composer *composer.Composer
}

func newREPL(app *application, in io.Reader, out io.Writer) *repl {
	return &repl{app: app, in: in, out: out}
}

// Run reads commands until /quit, end of input or ctx is done.
func (r *repl) Run(ctx context.Context) error {
	fmt.Fprintln(r.out, help)
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r.in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		fmt.Fprint(r.out, r.prompt())
		select {
		case <-ctx.Done():
			r.leave()
			return nil
		case line, ok := <-lines:
			if !ok {
				r.leave()
				return nil
			}
			err := r.Exec(ctx, line)
			if stderrors.Is(err, errQuit) {
				r.leave()
				return nil
			}
			if err != nil {
				fmt.Fprintln(r.out, errorStyle.Render(err.Error()))
			}
		}
	}
}

func (r *repl) prompt() string {
	if r.composer == nil {
		return promptStyle.Render("[no conversation]") + " "
	}
	state := r.composer.State()
	label := r.current + " · " + state.Name()
	if buffer := composer.Buffer(state); buffer != "" {
		label += " · " + strconv.Quote(buffer)
	}
	return promptStyle.Render("["+label+"]") + " "
}

func (r *repl) Exec(ctx context.Context, line string) error {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return nil
	}
	if !strings.HasPrefix(line, "/") {
		return r.sendText(line)
	}
	command, arg, _ := strings.Cut(strings.TrimPrefix(line, "/"), " ")
	arg = strings.TrimSpace(arg)

	switch command {
	case "help":
		fmt.Fprintln(r.out, help)
		return nil
	case "quit", "exit":
		return errQuit
	case "open":
		return r.open(arg)
	case "leave":
		r.leave()
		return nil
	case "inbox":
		r.printInbox()
		return nil
	case "crushes":
		r.printCrushes()
		return nil
	case "crush":
		return r.crush(ctx, arg)
	case "stats":
		r.printStats()
		return nil
	}

	if r.composer == nil {
		return fmt.Errorf("open a conversation first: /open PEER")
	}
	switch command {
	case "type":
		return r.composer.Type(arg)
	case "send":
		return r.printSent(r.composer.Send())
	case "emoji":
		return r.composer.OpenEmojiPicker()
	case "pick":
		return r.composer.ChooseEmoji(arg)
	case "dismiss":
		return r.composer.DismissEmojiPicker()
	case "attach":
		return r.attach(arg)
	case "mic":
		return r.composer.PressMic(ctx)
	case "release":
		message, err := r.composer.ReleaseMic(ctx)
		if err == nil && message == nil {
			fmt.Fprintln(r.out, "Recording discarded")
		}
		return r.printSent(message, err)
	case "cancel":
		return r.composer.CancelRecording()
	case "receive":
		message, err := r.app.chat.Receive(r.current, domain.NewTextMessage(domain.SenderPeer, arg, time.Now().UTC()))
		if err != nil {
			return err
		}
		r.printMessage(message)
		return nil
	case "history":
		messages, err := r.app.chat.Messages(r.current)
		if err != nil {
			return err
		}
		for _, message := range messages {
			r.printMessage(message)
		}
		return nil
	}
	return fmt.Errorf("unknown command /%s, try /help", command)
}

func (r *repl) open(peer string) error {
	if peer == "" {
		return fmt.Errorf("usage: /open PEER")
	}
	r.leave()
	c, err := r.app.chat.OpenConversation(peer, []string{r.app.userID, peer})
	if err != nil {
		return err
	}
	r.current, r.composer = peer, c
	messages, err := r.app.chat.Messages(peer)
	if err != nil {
		return err
	}
	for _, message := range messages {
		r.printMessage(message)
	}
	return nil
}

func (r *repl) leave() {
	if r.composer == nil {
		return
	}
	if err := r.app.chat.LeaveConversation(r.current); err != nil {
		r.app.log.Warn("Unable to leave conversation", "conversation_id", r.current, "error", err)
	}
	r.current, r.composer = "", nil
}

func (r *repl) sendText(text string) error {
	if r.composer == nil {
		return fmt.Errorf("open a conversation first: /open PEER")
	}
	if err := r.composer.Type(text); err != nil {
		return err
	}
	return r.printSent(r.composer.Send())
}

func (r *repl) attach(path string) error {
	if path == "" {
		return r.printSent(r.composer.Attach(attachment.PickerResult{Status: attachment.PickerCancelled}))
	}
	result, err := pickFile(path)
	if err != nil {
		return err
	}
	return r.printSent(r.composer.Attach(result))
}

// pickFile plays the role of the platform document picker for a local path.
func pickFile(path string) (attachment.PickerResult, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return attachment.PickerResult{Status: attachment.PickerFailed}, err
	}
	f, err := os.Open(abs)
	if err != nil {
		return attachment.PickerResult{Status: attachment.PickerFailed}, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return attachment.PickerResult{Status: attachment.PickerFailed}, err
	}
	header := make([]byte, 512)
	n, err := io.ReadFull(f, header)
	if err != nil && !stderrors.Is(err, io.ErrUnexpectedEOF) && !stderrors.Is(err, io.EOF) {
		return attachment.PickerResult{Status: attachment.PickerFailed}, err
	}
	return attachment.PickerResult{
		Status: attachment.PickerSuccess,
		URI:    "file://" + abs,
		Name:   info.Name(),
		Size:   info.Size(),
		Header: header[:n],
	}, nil
}

func (r *repl) crush(ctx context.Context, arg string) error {
	action, value, _ := strings.Cut(arg, " ")
	value = strings.TrimSpace(value)
	switch action {
	case "add":
		crush, err := r.app.crushes.Add(ctx, r.app.crushes.Resolve(value))
		if err != nil {
			return err
		}
		fmt.Fprintf(r.out, "Added @%s (%s)\n", crush.InstagramHandle, crush.ID)
		return nil
	case "rm", "remove":
		return r.app.crushes.Remove(ctx, value)
	}
	return fmt.Errorf("usage: /crush add HANDLE|URL or /crush rm ID")
}

func (r *repl) printSent(message *domain.Message, err error) error {
	if err != nil {
		return err
	}
	if message != nil {
		r.printMessage(*message)
	}
	return nil
}

func (r *repl) printMessage(message domain.Message) {
	style := selfStyle
	if message.Sender == domain.SenderPeer {
		style = peerStyle
	}
	var body string
	switch message.Kind {
	case domain.KindText:
		body = message.Text
	case domain.KindAudio:
		duration := "?"
		if message.Media.Duration != nil {
			duration = message.Media.Duration.Round(time.Second).String()
		}
		body = fmt.Sprintf("[audio %s] %s", duration, message.Media.URI)
	case domain.KindFile:
		body = fmt.Sprintf("[file %s %s] %s", message.Media.Name, message.Media.MimeHint, message.Media.URI)
	}
	fmt.Fprintf(r.out, "%s %s %s\n",
		message.CreatedAt.Local().Format("15:04"),
		style.Render(string(message.Sender)+":"),
		body)
}

func (r *repl) printInbox() {
	table := newTable(r.out, "Conversation", "Participants", "Last message", "Last activity", "Unread")
	for _, summary := range r.app.chat.Inbox() {
		table.Append([]string{
			summary.ID,
			strings.Join(summary.ParticipantIDs, ", "),
			summary.LastMessage,
			summary.LastActivity.Local().Format(time.DateTime),
			strconv.Itoa(summary.UnreadCount),
		})
	}
	table.Render()
	fmt.Fprintf(r.out, "Unread: %d\n", r.app.chat.TotalUnread())
}

func (r *repl) printCrushes() {
	table := newTable(r.out, "ID", "Handle")
	for _, crush := range r.app.crushes.List() {
		table.Append([]string{crush.ID, "@" + crush.InstagramHandle})
	}
	table.Render()
}

func (r *repl) printStats() {
	stats := r.app.monitor.GetLatest()
	table := newTable(r.out, "Counter", "Value")
	table.Append([]string{"Messages sent", strconv.FormatUint(stats.MessagesSent, 10)})
	table.Append([]string{"Messages received", strconv.FormatUint(stats.MessagesReceived, 10)})
	table.Append([]string{"Recordings completed", strconv.FormatUint(stats.RecordingsCompleted, 10)})
	table.Append([]string{"Recordings aborted", strconv.FormatUint(stats.RecordingsAborted, 10)})
	table.Append([]string{"Attachments rejected", strconv.FormatUint(stats.AttachmentsRejected, 10)})
	table.Append([]string{"Composer rejections", strconv.FormatUint(stats.ComposerRejections, 10)})
	table.Append([]string{"Crushes", strconv.FormatInt(stats.Crushes, 10)})
	table.Render()
	for _, activity := range stats.RecentActivity {
		fmt.Fprintf(r.out, "%s %s %s %s\n", activity.Timestamp,
			activity.ConversationID, activity.Event, activity.Detail)
	}
}

func newTable(out io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(out)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	return table
}
