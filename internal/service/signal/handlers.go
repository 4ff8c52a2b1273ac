package signal

import (
	"context"
	"strconv"
	"time"

	"github.com/jeffschecter/Signal/internal/db"
	svcErr "github.com/jeffschecter/Signal/internal/errors"
	"github.com/jeffschecter/Signal/internal/utils/pagination"
)

const defaultPageSize = 20

type userReq struct {
	UserID uint64 `mapstructure:"user_id"`
}

type locationReq struct {
	UserID    uint64  `mapstructure:"user_id"`
	Name      string  `mapstructure:"name"`
	Latitude  float64 `mapstructure:"latitude"`
	Longitude float64 `mapstructure:"longitude"`
}

type updateReq struct {
	UserID uint64         `mapstructure:"user_id"`
	Fields map[string]any `mapstructure:"fields"`
}

type blobReq struct {
	UserID uint64 `mapstructure:"user_id"`
	Data   []byte `mapstructure:"data"`
}

type pairReq struct {
	UserID    uint64 `mapstructure:"user_id"`
	PartnerID uint64 `mapstructure:"partner_id"`
	Value     bool   `mapstructure:"value"`
}

type messageReq struct {
	SenderID        uint64 `mapstructure:"sender_id"`
	RecipientID     uint64 `mapstructure:"recipient_id"`
	Audio           []byte `mapstructure:"audio"`
	SentAtMs        int64  `mapstructure:"sent_at_ms"`
	RecordRetrieval bool   `mapstructure:"record_retrieval"`
	RoseID          int    `mapstructure:"rose_id"`
}

type waterReq struct {
	UserID   uint64         `mapstructure:"user_id"`
	Kind     string         `mapstructure:"kind"`
	Metadata map[string]any `mapstructure:"metadata"`
}

type historyReq struct {
	UserID              uint64 `mapstructure:"user_id"`
	PageToken           string `mapstructure:"page_token"`
	Limit               int    `mapstructure:"limit"`
	CacheTimeMs         int64  `mapstructure:"cache_time_ms"`
	Ascending           bool   `mapstructure:"ascending"`
	New                 bool   `mapstructure:"new"`
	SavedOnly           bool   `mapstructure:"saved_only"`
	BlockedOnly         bool   `mapstructure:"blocked_only"`
	SentRoseOnly        bool   `mapstructure:"sent_rose_only"`
	ReceivedRoseOnly    bool   `mapstructure:"received_rose_only"`
	SentMessageOnly     bool   `mapstructure:"sent_message_only"`
	ReceivedMessageOnly bool   `mapstructure:"received_message_only"`
	VisitedOnly         bool   `mapstructure:"visited_only"`
	VisitedByOnly       bool   `mapstructure:"visited_by_only"`
}

func handleCreateAccount(s *Service, ctx context.Context, in map[string]any) (map[string]any, error) {
	var req locationReq
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	acct, err := s.CreateAccount(ctx, req.Name, req.Latitude, req.Longitude, time.Time{})
	if err != nil {
		return nil, err
	}
	return encodeAccount(acct), nil
}

func handleLoadAccount(s *Service, ctx context.Context, in map[string]any) (map[string]any, error) {
	var req userReq
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	acct, err := s.LoadAccount(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	return encodeAccount(acct), nil
}

func handleUpdateAccount(s *Service, ctx context.Context, in map[string]any) (map[string]any, error) {
	var req updateReq
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	acct, err := s.UpdateAccountFields(ctx, req.UserID, req.Fields)
	if err != nil {
		return nil, err
	}
	return encodeAccount(acct), nil
}

func handlePing(s *Service, ctx context.Context, in map[string]any) (map[string]any, error) {
	var req locationReq
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	m, err := s.Ping(ctx, req.UserID, req.Latitude, req.Longitude, time.Time{})
	if err != nil {
		return nil, err
	}
	return map[string]any{"match": encodeMatch(m)}, nil
}

func handleDeactivate(s *Service, ctx context.Context, in map[string]any) (map[string]any, error) {
	return handleActive(s.Deactivate, ctx, in)
}

func handleReactivate(s *Service, ctx context.Context, in map[string]any) (map[string]any, error) {
	return handleActive(s.Reactivate, ctx, in)
}

func handleActive(
	set func(context.Context, uint64) (*db.MatchParameters, error),
	ctx context.Context,
	in map[string]any,
) (map[string]any, error) {
	var req userReq
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	m, err := set(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"match": encodeMatch(m)}, nil
}

func handleSetIntro(s *Service, ctx context.Context, in map[string]any) (map[string]any, error) {
	var req blobReq
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	return map[string]any{}, s.SetIntro(ctx, req.UserID, req.Data)
}

func handleGetIntro(s *Service, ctx context.Context, in map[string]any) (map[string]any, error) {
	var req userReq
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	b, err := s.GetIntro(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"data": encodeBytes(b)}, nil
}

func handleSetImage(s *Service, ctx context.Context, in map[string]any) (map[string]any, error) {
	var req blobReq
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	return map[string]any{}, s.SetImage(ctx, req.UserID, req.Data)
}

func handleGetImage(s *Service, ctx context.Context, in map[string]any) (map[string]any, error) {
	var req userReq
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	b, err := s.GetImage(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"data": encodeBytes(b)}, nil
}

func handleRecordProfileView(s *Service, ctx context.Context, in map[string]any) (map[string]any, error) {
	var req pairReq
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	return map[string]any{}, s.RecordProfileView(ctx, req.UserID, req.PartnerID, time.Time{})
}

func handleSetSaved(s *Service, ctx context.Context, in map[string]any) (map[string]any, error) {
	var req pairReq
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	rel, err := s.SetSaved(ctx, req.UserID, req.PartnerID, req.Value, time.Time{})
	if err != nil {
		return nil, err
	}
	return map[string]any{"relationship": encodeRelationship(rel)}, nil
}

func handleSetBlocked(s *Service, ctx context.Context, in map[string]any) (map[string]any, error) {
	var req pairReq
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	rel, err := s.SetBlocked(ctx, req.UserID, req.PartnerID, req.Value, time.Time{})
	if err != nil {
		return nil, err
	}
	return map[string]any{"relationship": encodeRelationship(rel)}, nil
}

func handleSendMessage(s *Service, ctx context.Context, in map[string]any) (map[string]any, error) {
	var req messageReq
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	sent, err := s.SendMessage(ctx, req.SenderID, req.RecipientID, req.Audio, time.Time{})
	if err != nil {
		return nil, err
	}
	return encodeSent(sent), nil
}

func handleGetMessageFile(s *Service, ctx context.Context, in map[string]any) (map[string]any, error) {
	var req messageReq
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	b, err := s.GetMessageFile(ctx, req.SenderID, req.RecipientID, req.SentAtMs, req.RecordRetrieval, time.Time{})
	if err != nil {
		return nil, err
	}
	return map[string]any{"audio": encodeBytes(b)}, nil
}

func handleGetGarden(s *Service, ctx context.Context, in map[string]any) (map[string]any, error) {
	var req userReq
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	roses, err := s.GetGarden(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	now := s.at(time.Time{})
	out := make([]any, 0, len(roses))
	for _, r := range roses {
		out = append(out, map[string]any{
			"rose_id":    r.RoseID,
			"planted_ms": db.Millis(r.Planted),
			"bloomed_ms": db.Millis(r.Bloomed),
			"bloomed":    r.IsBloomed(now),
		})
	}
	return map[string]any{"roses": out}, nil
}

func handleSendRose(s *Service, ctx context.Context, in map[string]any) (map[string]any, error) {
	var req messageReq
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	sent, err := s.SendRose(ctx, req.SenderID, req.RecipientID, req.RoseID, time.Time{})
	if err != nil {
		return nil, err
	}
	return encodeSent(sent), nil
}

func handleAcknowledgeRose(s *Service, ctx context.Context, in map[string]any) (map[string]any, error) {
	var req messageReq
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	cleared, err := s.AcknowledgeRose(ctx, req.SenderID, req.RecipientID, req.SentAtMs)
	if err != nil {
		return nil, err
	}
	return map[string]any{"cleared": cleared}, nil
}

func handleWater(s *Service, ctx context.Context, in map[string]any) (map[string]any, error) {
	var req waterReq
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	kind, ok := db.ParseWateringKind(req.Kind)
	if !ok {
		return nil, svcErr.InvalidArgument("unknown watering kind %q", req.Kind)
	}
	rose, err := s.Water(ctx, req.UserID, kind, req.Metadata, time.Time{})
	if err != nil {
		return nil, err
	}
	if rose == nil {
		return map[string]any{"watered": false}, nil
	}
	return map[string]any{"watered": true, "rose_id": *rose}, nil
}

func handleEligibleForWatering(s *Service, ctx context.Context, in map[string]any) (map[string]any, error) {
	var req userReq
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	ok, err := s.EligibleForWatering(ctx, req.UserID, time.Time{})
	if err != nil {
		return nil, err
	}
	return map[string]any{"eligible": ok}, nil
}

func handleHistory(s *Service, ctx context.Context, in map[string]any) (map[string]any, error) {
	var req historyReq
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	cursor, err := pagination.Decode(req.PageToken)
	if err != nil {
		return nil, svcErr.InvalidArgument("%v", err)
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}

	q := HistoryQuery{
		Offset:              cursor.Offset,
		Limit:               limit,
		Ascending:           req.Ascending,
		New:                 req.New,
		SavedOnly:           req.SavedOnly,
		BlockedOnly:         req.BlockedOnly,
		SentRoseOnly:        req.SentRoseOnly,
		ReceivedRoseOnly:    req.ReceivedRoseOnly,
		SentMessageOnly:     req.SentMessageOnly,
		ReceivedMessageOnly: req.ReceivedMessageOnly,
		VisitedOnly:         req.VisitedOnly,
		VisitedByOnly:       req.VisitedByOnly,
	}
	if req.CacheTimeMs > 0 {
		t := db.FromMillis(req.CacheTimeMs)
		q.CacheTime = &t
	}

	entries, err := s.History(ctx, req.UserID, q)
	if err != nil {
		return nil, err
	}
	out := make([]any, 0, len(entries))
	for _, e := range entries {
		rel := encodeRelationship(&e.Relationship)
		rel["partner_name"] = e.PartnerName
		out = append(out, rel)
	}
	return map[string]any{
		"entries":         out,
		"next_page_token": pagination.Next(cursor.Offset, limit, len(entries)),
	}, nil
}

func handleUnreadCounts(s *Service, ctx context.Context, in map[string]any) (map[string]any, error) {
	var req userReq
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	u, err := s.UnreadCounts(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"roses": u.Roses, "messages": u.Messages}, nil
}

// Response encoding. Ids travel as decimal strings like the rest of the
// API, times as milliseconds since epoch.

func id(v uint64) string { return strconv.FormatUint(v, 10) }

func millis(t *time.Time) any {
	if t == nil {
		return nil
	}
	return db.Millis(*t)
}

func ints(v []int) []any {
	out := make([]any, 0, len(v))
	for _, n := range v {
		out = append(out, n)
	}
	return out
}

func encodeSent(t *time.Time) map[string]any {
	if t == nil {
		return map[string]any{"sent": false}
	}
	return map[string]any{"sent": true, "sent_at_ms": db.Millis(*t)}
}

func encodeAccount(a *Account) map[string]any {
	out := map[string]any{}
	if a.User != nil {
		out["user"] = map[string]any{
			"user_id":          id(a.User.ID),
			"name":             a.User.Name,
			"gender_string":    a.User.GenderString,
			"sexuality_string": a.User.SexualityString,
			"joined_ms":        db.Millis(a.User.Joined),
		}
	}
	if a.Match != nil {
		out["match"] = encodeMatch(a.Match)
	}
	if a.Search != nil {
		out["search"] = map[string]any{
			"radius":                    a.Search.Radius,
			"min_age":                   a.Search.MinAge,
			"max_age":                   a.Search.MaxAge,
			"accept_male_sexualities":   ints(a.Search.AcceptMaleSexualities),
			"accept_female_sexualities": ints(a.Search.AcceptFemaleSexualities),
			"accept_other_sexualities":  ints(a.Search.AcceptOtherSexualities),
		}
	}
	return out
}

func encodeMatch(m *db.MatchParameters) map[string]any {
	return map[string]any{
		"user_id":          id(m.UserID),
		"gender":           m.Gender,
		"sexuality":        m.Sexuality,
		"birthday_ms":      millis(m.Birthday),
		"last_activity_ms": db.Millis(m.LastActivity),
		"latitude":         m.Latitude,
		"longitude":        m.Longitude,
		"country":          m.Country,
		"region":           m.Region,
		"city":             m.City,
		"active":           m.Active,
	}
}

func encodeRelationship(r *db.Relationship) map[string]any {
	return map[string]any{
		"partner_id":               id(r.PatientID),
		"full":                     r.Full,
		"last_profile_view_ms":     millis(r.LastProfileView),
		"last_viewed_by_ms":        millis(r.LastViewedBy),
		"blocked":                  r.Blocked,
		"saved":                    r.Saved,
		"can_see_icon":             r.CanSeeIcon,
		"new_roses":                r.NewRoses,
		"new_messages":             r.NewMessages,
		"last_sent_rose_ms":        millis(r.LastSentRose),
		"last_received_rose_ms":    millis(r.LastReceivedRose),
		"last_sent_message_ms":     millis(r.LastSentMessage),
		"last_received_message_ms": millis(r.LastReceivedMessage),
		"last_incoming_ms":         millis(r.LastIncoming),
	}
}
