package compare

import (
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/claimlink/internal/model"
)

var fixedNow = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

func consistentInput() *Input {
	return &Input{
		Personal: model.PersonalDetails{
			Name:   "John Doe",
			DOB:    "1990-03-14",
			Gender: "M",
		},
		Passport: &model.PassportRecord{
			Name:           model.String("john doe"),
			DOB:            model.String("1990/03/14"),
			Gender:         model.String("m"),
			Expiry:         model.String("20300101"),
			Authentication: &model.Authentication{Score: 0.92},
		},
		Ticket: &model.FlightTicketRecord{
			Name:             model.String("JOHN DOE"),
			BookingReference: model.String("ABC123"),
			AirlineName:      model.String("Emirates"),
			FlightNumber:     model.String("EK202"),
		},
		Tag: &model.BaggageTagRecord{
			AirlineName:      model.String("EMIRATES"),
			BookingReference: model.String("abc123"),
			PassengerName:    model.String("John Doe"),
			Barcode:          model.String("0176123456"),
		},
	}
}

func newTestSet() *Set {
	return NewSet(DefaultOptions(), WithClock(func() time.Time { return fixedNow }))
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"John Doe", "john doe", 100},
		{"", "", 100},
		{"abc", "", 0},
		{"kitten", "sitting", 62},
		{"john doe", "jon doe", 93},
		{"ABC123", "ABC124", 83},
		{"Émile Zola", "emile zola", 90},
	}

	for _, tt := range tests {
		if got := Similarity(tt.a, tt.b); got != tt.want {
			t.Errorf("Similarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestSimilarity_SelfIsPerfect(t *testing.T) {
	for _, s := range []string{"a", "John Doe", "ÉMILE ZOLA", "Ahmed Al-Mansouri", "ABC123", "emirates"} {
		if got := Similarity(s, s); got != 100 {
			t.Errorf("Similarity(%q, itself) = %v, want 100", s, got)
		}
		if got := Similarity(s, strings.ToUpper(s)); got != 100 {
			t.Errorf("Similarity(%q, upper-cased) = %v, want 100", s, got)
		}
	}
}

func TestSimilarity_Symmetric(t *testing.T) {
	pairs := [][2]string{{"john smith", "jane doe"}, {"EK202", "EK 202"}, {"flynas", "fly nas"}}
	for _, p := range pairs {
		if Similarity(p[0], p[1]) != Similarity(p[1], p[0]) {
			t.Errorf("Expected symmetric similarity for %q and %q", p[0], p[1])
		}
	}
}

func TestEvaluate_ConsistentDocuments(t *testing.T) {
	errs, outcomes := newTestSet().Evaluate(consistentInput())

	if len(errs) != 0 {
		t.Errorf("Expected no errors, got %v", errs.Kinds())
	}
	if len(outcomes) != len(Kinds()) {
		t.Errorf("Expected %d outcomes, got %d", len(Kinds()), len(outcomes))
	}
}

func TestEvaluate_StageOrder(t *testing.T) {
	_, outcomes := newTestSet().Evaluate(consistentInput())

	lastStage := -1
	order := map[model.DocumentType]int{
		model.DocumentPassport:     0,
		model.DocumentFlightTicket: 1,
		model.DocumentBaggageTag:   2,
	}
	for _, o := range outcomes {
		stage := order[o.Kind.Stage()]
		if stage < lastStage {
			t.Fatalf("Comparator %s ran after a later stage", o.Kind)
		}
		lastStage = stage
	}
}

func TestSelfComparisonProducesNoSignal(t *testing.T) {
	s := newTestSet()
	for _, name := range []string{"John Doe", "MARIA DEL CARMEN", "li wei"} {
		in := &Input{
			Personal: model.PersonalDetails{Name: name},
			Passport: &model.PassportRecord{Name: model.String(name), Authentication: &model.Authentication{Score: 1}},
		}
		if _, ok := s.Run(KindPassportName, in); ok {
			t.Errorf("Expected no mismatch comparing %q with itself", name)
		}
	}
}

func TestComparators(t *testing.T) {
	tests := []struct {
		name      string
		kind      Kind
		mutate    func(in *Input)
		wantEmit  bool
		wantNull  bool
		wantScore float64
	}{
		{
			name:      "passport name mismatch",
			kind:      KindPassportName,
			mutate:    func(in *Input) { in.Passport.Name = model.String("Jane Smith") },
			wantEmit:  true,
			wantScore: Similarity("John Doe", "Jane Smith"),
		},
		{
			name:   "passport name missing is skipped",
			kind:   KindPassportName,
			mutate: func(in *Input) { in.Passport.Name = nil },
		},
		{
			name:   "declared name empty is skipped",
			kind:   KindPassportName,
			mutate: func(in *Input) { in.Personal.Name = "" },
		},
		{
			name:     "dob mismatch",
			kind:     KindDOB,
			mutate:   func(in *Input) { in.Passport.DOB = model.String("19900315") },
			wantEmit: true,
		},
		{
			name:   "dob compact format matches",
			kind:   KindDOB,
			mutate: func(in *Input) { in.Passport.DOB = model.String("19900314") },
		},
		{
			name:   "dob unparseable is skipped",
			kind:   KindDOB,
			mutate: func(in *Input) { in.Passport.DOB = model.String("14 MAR") },
		},
		{
			name:     "gender mismatch",
			kind:     KindGender,
			mutate:   func(in *Input) { in.Passport.Gender = model.String("F") },
			wantEmit: true,
		},
		{
			name:   "gender case-insensitive",
			kind:   KindGender,
			mutate: func(in *Input) { in.Personal.Gender = "m" },
		},
		{
			name:     "expired passport",
			kind:     KindExpiry,
			mutate:   func(in *Input) { in.Passport.Expiry = model.String("2025/05/31") },
			wantEmit: true,
		},
		{
			name:   "passport expiring today is valid",
			kind:   KindExpiry,
			mutate: func(in *Input) { in.Passport.Expiry = model.String("2025/06/01") },
		},
		{
			name:     "authenticity at cutoff fails",
			kind:     KindAuthenticity,
			mutate:   func(in *Input) { in.Passport.Authentication.Score = 0.5 },
			wantEmit: true,
			wantNull: true,
		},
		{
			name:   "authenticity above cutoff passes",
			kind:   KindAuthenticity,
			mutate: func(in *Input) { in.Passport.Authentication.Score = 0.51 },
		},
		{
			name:     "missing authentication block is unrecognized",
			kind:     KindRecognition,
			mutate:   func(in *Input) { in.Passport.Authentication = nil },
			wantEmit: true,
			wantNull: true,
		},
		{
			name:     "missing passport is unrecognized",
			kind:     KindRecognition,
			mutate:   func(in *Input) { in.Passport = nil },
			wantEmit: true,
			wantNull: true,
		},
		{
			name:     "all-null ticket is unreadable",
			kind:     KindTicketReadability,
			mutate:   func(in *Input) { in.Ticket = &model.FlightTicketRecord{} },
			wantEmit: true,
			wantNull: true,
		},
		{
			name:     "nil ticket is unreadable",
			kind:     KindTicketReadability,
			mutate:   func(in *Input) { in.Ticket = nil },
			wantEmit: true,
			wantNull: true,
		},
		{
			name:     "ticket name differs from declared",
			kind:     KindPersonalTicketName,
			mutate:   func(in *Input) { in.Ticket.Name = model.String("PETER PAN") },
			wantEmit: true,
		},
		{
			name:   "ticket name from parts",
			kind:   KindPersonalTicketName,
			mutate: func(in *Input) { in.Ticket.Name = nil; in.Ticket.FirstName = model.String("JOHN"); in.Ticket.LastName = model.String("DOE") },
		},
		{
			name:     "ticket name differs from passport",
			kind:     KindPassportTicketName,
			mutate:   func(in *Input) { in.Ticket.Name = model.String("PETER PAN") },
			wantEmit: true,
		},
		{
			name:   "passport ticket name skipped without passport",
			kind:   KindPassportTicketName,
			mutate: func(in *Input) { in.Passport = nil },
		},
		{
			name:     "nil tag is unreadable",
			kind:     KindTagReadability,
			mutate:   func(in *Input) { in.Tag = nil },
			wantEmit: true,
			wantNull: true,
		},
		{
			name:     "airline mismatch",
			kind:     KindAirlineName,
			mutate:   func(in *Input) { in.Tag.AirlineName = model.String("flynas") },
			wantEmit: true,
		},
		{
			name:   "airline skipped without ticket",
			kind:   KindAirlineName,
			mutate: func(in *Input) { in.Ticket = nil },
		},
		{
			name:     "booking reference mismatch",
			kind:     KindBookingReference,
			mutate:   func(in *Input) { in.Tag.BookingReference = model.String("XYZ789") },
			wantEmit: true,
		},
		{
			name:     "passenger name mismatch",
			kind:     KindPassengerName,
			mutate:   func(in *Input) { in.Tag.PassengerName = model.String("Mary Major") },
			wantEmit: true,
		},
		{
			name:     "emirates barcode must start with zero",
			kind:     KindEmiratesBarcode,
			mutate:   func(in *Input) { in.Tag.Barcode = model.String("1176123456") },
			wantEmit: true,
			wantNull: true,
		},
		{
			name: "other airline barcode not checked",
			kind: KindEmiratesBarcode,
			mutate: func(in *Input) {
				in.Tag.AirlineName = model.String("flynas")
				in.Tag.Barcode = model.String("1176123456")
			},
		},
		{
			name:   "emirates without barcode is skipped",
			kind:   KindEmiratesBarcode,
			mutate: func(in *Input) { in.Tag.Barcode = nil },
		},
	}

	s := newTestSet()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := consistentInput()
			tt.mutate(in)

			sig, ok := s.Run(tt.kind, in)
			if ok != tt.wantEmit {
				t.Fatalf("Expected emit=%v, got %v (signal %+v)", tt.wantEmit, ok, sig)
			}
			if !ok {
				return
			}
			if sig.Kind != tt.kind.ErrorKind() {
				t.Errorf("Expected error kind %q, got %q", tt.kind.ErrorKind(), sig.Kind)
			}
			if tt.wantNull {
				if sig.Score != nil {
					t.Errorf("Expected null score, got %v", *sig.Score)
				}
				return
			}
			if sig.Score == nil {
				t.Fatal("Expected a score, got null")
			}
			if *sig.Score < 0 || *sig.Score > 100 {
				t.Errorf("Score out of range: %v", *sig.Score)
			}
			if tt.wantScore != 0 && *sig.Score != tt.wantScore {
				t.Errorf("Expected score %v, got %v", tt.wantScore, *sig.Score)
			}
		})
	}
}

func TestEvaluate_AllDocumentsMissing(t *testing.T) {
	in := &Input{Personal: model.PersonalDetails{Name: "John Doe"}}
	errs, _ := newTestSet().Evaluate(in)

	want := []model.ErrorKind{model.ErrIncorrectBaggageTag, model.ErrIncorrectFlightTicket, model.ErrUnrecognized}
	kinds := errs.Kinds()
	if len(kinds) != len(want) {
		t.Fatalf("Expected %v, got %v", want, kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("Expected %q, got %q", want[i], kinds[i])
		}
		if errs[kinds[i]] != nil {
			t.Errorf("Expected null score for %q", kinds[i])
		}
	}
}

func TestSimilarityThresholdIsTunable(t *testing.T) {
	in := consistentInput()
	in.Ticket.Name = model.String("JON DOE")

	strict := NewSet(Options{SimilarityThreshold: 95, AuthenticityCutoff: 0.5}, WithClock(func() time.Time { return fixedNow }))
	if _, ok := strict.Run(KindPersonalTicketName, in); !ok {
		t.Error("Expected mismatch with strict threshold")
	}

	lenient := NewSet(Options{SimilarityThreshold: 70, AuthenticityCutoff: 0.5}, WithClock(func() time.Time { return fixedNow }))
	if _, ok := lenient.Run(KindPersonalTicketName, in); ok {
		t.Error("Expected no mismatch with lenient threshold")
	}
}

func TestKindMetadata(t *testing.T) {
	seen := map[model.ErrorKind]bool{}
	for _, k := range Kinds() {
		if k.String() == "unknown" {
			t.Errorf("Kind %d has no name", k)
		}
		seen[k.ErrorKind()] = true
	}
	for _, ek := range model.ErrorKinds {
		if !seen[ek] {
			t.Errorf("No comparator emits %q", ek)
		}
	}
	if Kind(-1).String() != "unknown" || kindCount.String() != "unknown" {
		t.Error("Expected out-of-range kinds to be unknown")
	}
}
