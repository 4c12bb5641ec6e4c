package feed

import (
	"testing"

	"github.com/fangwater/feedrace/internal/config"
)

func rawAdapter() *Adapter {
	return NewAdapter(config.FeedConfig{Format: "raw", KeyField: "u"})
}

func combinedAdapter() *Adapter {
	return NewAdapter(config.FeedConfig{Format: "combined", KeyField: "u"})
}

func TestDecode_RawDataMessage(t *testing.T) {
	payload := []byte(`{"e":"depthUpdate","E":1700000000123,"s":"BTCUSDT","U":4000000001,"u":4000000005}`)
	key, ok, err := rawAdapter().Decode(payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !ok {
		t.Fatal("Decode: expected a data message")
	}
	if key != 4000000005 {
		t.Errorf("key: got %d, want 4000000005", key)
	}
}

func TestDecode_CombinedEnvelope(t *testing.T) {
	payload := []byte(`{"stream":"btcusdt@depth","data":{"e":"depthUpdate","u":4000000005}}`)
	key, ok, err := combinedAdapter().Decode(payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !ok || key != 4000000005 {
		t.Errorf("got (%d, %v), want (4000000005, true)", key, ok)
	}
}

func TestDecode_CustomKeyField(t *testing.T) {
	a := NewAdapter(config.FeedConfig{Format: "raw", KeyField: "seqId"})
	key, ok, err := a.Decode([]byte(`{"seqId":42,"px":"67000.1"}`))
	if err != nil || !ok || key != 42 {
		t.Fatalf("got (%d, %v, %v), want (42, true, nil)", key, ok, err)
	}
}

func TestDecode_SubscribeAcks(t *testing.T) {
	acks := [][]byte{
		[]byte(`{"result":null,"id":1}`),                          // request-reply ack
		[]byte(`{"event":"subscribe","arg":{"channel":"books"}}`), // event notice
		[]byte(`{"id":7}`),                                        // bare reply id
	}
	for _, raw := range acks {
		key, ok, err := rawAdapter().Decode(raw)
		if err != nil {
			t.Errorf("Decode(%s): unexpected error %v", raw, err)
		}
		if ok {
			t.Errorf("Decode(%s): ack must not produce an event (got key %d)", raw, key)
		}
	}
}

func TestDecode_MalformedJSON(t *testing.T) {
	_, ok, err := rawAdapter().Decode([]byte(`{"u":`))
	if err == nil {
		t.Fatal("Decode on truncated json: want error")
	}
	if ok {
		t.Fatal("Decode on truncated json: ok must be false")
	}
}

func TestDecode_MissingKeyField(t *testing.T) {
	_, ok, err := rawAdapter().Decode([]byte(`{"e":"trade","p":"67000.1"}`))
	if err == nil {
		t.Fatal("Decode without key field: want error")
	}
	if ok {
		t.Fatal("ok must be false")
	}
}

func TestDecode_NonNumericKey(t *testing.T) {
	_, _, err := rawAdapter().Decode([]byte(`{"u":"not-a-number"}`))
	if err == nil {
		t.Fatal("Decode with string key: want error")
	}
}

func TestDecode_CombinedMissingData(t *testing.T) {
	_, ok, err := combinedAdapter().Decode([]byte(`{"stream":"btcusdt@depth"}`))
	if err == nil {
		t.Fatal("combined payload without data object: want error")
	}
	if ok {
		t.Fatal("ok must be false")
	}

	// A combined-format ack still decodes as a silent non-data message.
	_, ok, err = combinedAdapter().Decode([]byte(`{"result":null,"id":3}`))
	if err != nil || ok {
		t.Fatalf("combined ack: got (ok=%v, err=%v), want silent drop", ok, err)
	}
}
