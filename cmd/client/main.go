package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"chatsync/client/internal/api"
	"chatsync/client/internal/config"
	"chatsync/client/internal/models"
	"chatsync/client/internal/roomsync"
	"chatsync/client/internal/session"
	"chatsync/client/internal/ws"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: no .env file loaded")
	}
	cfg := config.Load()
	if cfg.Email == "" || cfg.Password == "" {
		log.Fatal("CHAT_EMAIL and CHAT_PASSWORD must be set")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess := session.New()
	client := api.New(cfg.APIBaseURL, sess)

	user, err := login(ctx, client, cfg)
	if err != nil {
		log.Fatalf("login: %v", err)
	}
	log.Printf("Logged in as %s <%s>", user.Name, user.Email)

	channel := ws.New(cfg.SocketURL, sess.Token)
	defer channel.Close()

	engine := roomsync.New(client, channel, sess)
	engine.OnChange = func(ev models.Event) { render(engine, ev) }

	go engine.Run(ctx)
	go refreshLoop(ctx, client, sess)

	if err := engine.Bootstrap(ctx); err != nil {
		log.Printf("bootstrap: %v (room lists left empty)", err)
	}
	printRooms(engine)

	repl(ctx, cancel, engine, client)
}

// login authenticates, registering the account first when it does not exist
// yet.
func login(ctx context.Context, client *api.Client, cfg config.Config) (*models.User, error) {
	user, err := client.Login(ctx, cfg.Email, cfg.Password)
	var apiErr *api.Error
	if errors.As(err, &apiErr) && (apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusNotFound) {
		name := cfg.Name
		if name == "" {
			name = strings.SplitN(cfg.Email, "@", 2)[0]
		}
		if rerr := client.Register(ctx, name, cfg.Email, cfg.Password); rerr != nil {
			return nil, rerr
		}
		return client.Login(ctx, cfg.Email, cfg.Password)
	}
	return user, err
}

// refreshLoop rotates the token ahead of its expiry.
func refreshLoop(ctx context.Context, client *api.Client, sess *session.Session) {
	ticker := time.NewTicker(config.RefreshCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !sess.ExpiresWithin(config.RefreshLeeway) {
				continue
			}
			if err := client.Refresh(ctx); err != nil {
				log.Printf("token refresh: %v", err)
			}
		}
	}
}

// render reacts to applied push events. State has already been folded in by
// the engine; this only prints.
func render(engine *roomsync.Engine, ev models.Event) {
	switch ev.Type {
	case models.EventConnected:
		fmt.Println("* connected")
	case models.EventDisconnected:
		fmt.Println("* connection lost, reconnecting...")
	case models.EventNewMessage:
		msg := ev.Message
		if msg == nil {
			return
		}
		if active := engine.ActiveRoom(); active != nil && active.ID == msg.RoomID {
			printMessage(*msg)
		} else if room, ok := engine.FindRoom(msg.RoomID); ok {
			fmt.Printf("* new message in %s (%d unread)\n", room.Name, room.UnreadCount)
		}
	case models.EventRoomCreated:
		if ev.Room != nil {
			fmt.Printf("* room created: %s (id %d)\n", ev.Room.Name, ev.Room.ID)
		}
	case models.EventRoomDeleted:
		fmt.Printf("* room %d deleted\n", ev.RoomID)
	}
}

func repl(ctx context.Context, cancel context.CancelFunc, engine *roomsync.Engine, client *api.Client) {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("Commands: /rooms /join <id> /create <name> [description] /leave /delete <id> /quit")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "/") {
			send(ctx, engine, line)
			continue
		}

		fields := strings.Fields(line)
		switch fields[0] {
		case "/rooms":
			printRooms(engine)
		case "/join":
			cmdJoin(ctx, engine, fields)
		case "/create":
			cmdCreate(ctx, engine, fields)
		case "/leave":
			cmdLeave(ctx, engine)
		case "/delete":
			cmdDelete(ctx, engine, fields)
		case "/quit":
			cancel()
			if err := client.Logout(context.Background()); err != nil {
				log.Printf("logout: %v", err)
			}
			return
		default:
			fmt.Printf("unknown command %s\n", fields[0])
		}
	}
}

func send(ctx context.Context, engine *roomsync.Engine, text string) {
	active := engine.ActiveRoom()
	if active == nil {
		fmt.Println("no room selected, use /join <id>")
		return
	}
	err := engine.SendMessage(ctx, active.ID, models.MessageDraft{Content: text})
	if err != nil {
		log.Printf("send: %v", err)
	}
}

func cmdJoin(ctx context.Context, engine *roomsync.Engine, fields []string) {
	id, err := parseID(fields)
	if err != nil {
		fmt.Println(err)
		return
	}
	room, ok := engine.FindRoom(id)
	if !ok {
		fmt.Printf("unknown room %d\n", id)
		return
	}
	if err := engine.SelectRoom(ctx, room); err != nil {
		log.Printf("join: %v", err)
		return
	}
	fmt.Printf("-- %s --\n", room.Name)
	for _, msg := range engine.Messages() {
		printMessage(msg)
	}
}

func cmdCreate(ctx context.Context, engine *roomsync.Engine, fields []string) {
	if len(fields) < 2 {
		fmt.Println("usage: /create <name> [description]")
		return
	}
	name := fields[1]
	description := strings.Join(fields[2:], " ")
	room, err := engine.CreateRoom(ctx, name, description)
	if err != nil {
		log.Printf("create: %v", err)
		return
	}
	fmt.Printf("created and joined %s (id %d)\n", room.Name, room.ID)
}

func cmdLeave(ctx context.Context, engine *roomsync.Engine) {
	active := engine.ActiveRoom()
	if active == nil {
		fmt.Println("no room selected")
		return
	}
	if err := engine.LeaveRoom(ctx, *active); err != nil {
		log.Printf("leave: %v", err)
		return
	}
	fmt.Printf("left %s\n", active.Name)
}

func cmdDelete(ctx context.Context, engine *roomsync.Engine, fields []string) {
	id, err := parseID(fields)
	if err != nil {
		fmt.Println(err)
		return
	}
	if err := engine.DeleteRoom(ctx, id); err != nil {
		log.Printf("delete: %v", err)
	}
}

func parseID(fields []string) (int64, error) {
	if len(fields) < 2 {
		return 0, fmt.Errorf("usage: %s <room-id>", fields[0])
	}
	id, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad room id %q", fields[1])
	}
	return id, nil
}

func printMessage(msg models.Message) {
	author := fmt.Sprintf("user %d", msg.UserID)
	if msg.User != nil {
		author = msg.User.Name
	}
	body := msg.Content
	if body == "" && msg.FileURL != "" {
		body = "[" + msg.FileType + "] " + msg.FileURL
	}
	fmt.Printf("%s %s: %s\n", msg.CreatedAt.Format("15:04"), author, body)
}

func printRooms(engine *roomsync.Engine) {
	fmt.Println("My rooms:")
	for _, r := range engine.JoinedRooms() {
		marker := ""
		if r.UnreadCount > 0 {
			marker = fmt.Sprintf(" (%d unread)", r.UnreadCount)
		}
		fmt.Printf("  [%d] %s%s\n", r.ID, r.Name, marker)
	}
	fmt.Println("Available rooms:")
	for _, r := range engine.DiscoverableRooms() {
		fmt.Printf("  [%d] %s\n", r.ID, r.Name)
	}
}
