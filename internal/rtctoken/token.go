// Package rtctoken builds Agora AccessToken2 credentials for joining a
// channel, both for clients and for the recorder bot a recording session
// joins with. The format is a fixed binary layout: a "007" version prefix
// over a zlib-compressed, little-endian packed message signed with
// HMAC-SHA256 chained off the app certificate.
package rtctoken

import (
	"bytes"
	"compress/zlib"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"math/big"
	"time"
)

const version = "007"

// Privilege keys within the RTC service block.
const (
	privJoinChannel     = 1
	privPublishAudio    = 2
	privPublishVideo    = 3
	privPublishDataChan = 4
)

const serviceTypeRTC = 1

// Role determines which privileges the credential grants.
type Role int

const (
	// RolePublisher may join and publish audio, video and data.
	RolePublisher Role = 1
	// RoleSubscriber may only join and pull streams.
	RoleSubscriber Role = 2
)

// ParseRole maps the wire value ("publisher"/"subscriber") to a Role,
// defaulting to publisher like the original token endpoint.
func ParseRole(s string) Role {
	if s == "subscriber" {
		return RoleSubscriber
	}
	return RolePublisher
}

// Builder mints RTC credentials for one application identity.
type Builder struct {
	appID   string
	appCert string
}

// NewBuilder creates a credential builder from the app ID and certificate.
func NewBuilder(appID, appCert string) *Builder {
	return &Builder{appID: appID, appCert: appCert}
}

// RTCToken returns a channel-scoped bearer credential valid for ttl.
func (b *Builder) RTCToken(channelName, uid string, role Role, ttl time.Duration) (string, error) {
	if b.appID == "" || b.appCert == "" {
		return "", errors.New("rtctoken: app id and certificate required")
	}

	issueTs := uint32(time.Now().Unix())
	expire := uint32(ttl / time.Second)
	salt, err := randomSalt()
	if err != nil {
		return "", err
	}

	privileges := map[uint16]uint32{privJoinChannel: expire}
	if role == RolePublisher {
		privileges[privPublishAudio] = expire
		privileges[privPublishVideo] = expire
		privileges[privPublishDataChan] = expire
	}

	var svc bytes.Buffer
	packUint16(&svc, serviceTypeRTC)
	packPrivileges(&svc, privileges)
	packString(&svc, channelName)
	packString(&svc, uid)

	var msg bytes.Buffer
	packString(&msg, b.appID)
	packUint32(&msg, issueTs)
	packUint32(&msg, expire)
	packUint32(&msg, salt)
	packUint16(&msg, 1) // service count
	msg.Write(svc.Bytes())

	sign := b.sign(issueTs, salt, msg.Bytes())

	var content bytes.Buffer
	packBytes(&content, sign)
	content.Write(msg.Bytes())

	compressed, err := compress(content.Bytes())
	if err != nil {
		return "", err
	}
	return version + base64.StdEncoding.EncodeToString(compressed), nil
}

// sign chains HMAC-SHA256 through the issue timestamp and salt before
// signing the packed message, per the AccessToken2 layout.
func (b *Builder) sign(issueTs, salt uint32, msg []byte) []byte {
	var ts bytes.Buffer
	packUint32(&ts, issueTs)
	keyTs := hmacSum(ts.Bytes(), []byte(b.appCert))

	var sa bytes.Buffer
	packUint32(&sa, salt)
	keySalt := hmacSum(sa.Bytes(), keyTs)

	return hmacSum(keySalt, msg)
}

func hmacSum(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}

func randomSalt() (uint32, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1<<31))
	if err != nil {
		return 0, err
	}
	return uint32(n.Int64()) + 1, nil
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func packUint16(buf *bytes.Buffer, v uint16) {
	_ = binary.Write(buf, binary.LittleEndian, v)
}

func packUint32(buf *bytes.Buffer, v uint32) {
	_ = binary.Write(buf, binary.LittleEndian, v)
}

func packBytes(buf *bytes.Buffer, b []byte) {
	packUint16(buf, uint16(len(b)))
	buf.Write(b)
}

func packString(buf *bytes.Buffer, s string) {
	packBytes(buf, []byte(s))
}

// packPrivileges writes the privilege map in ascending key order so the
// same inputs always pack to the same bytes.
func packPrivileges(buf *bytes.Buffer, privileges map[uint16]uint32) {
	packUint16(buf, uint16(len(privileges)))
	keys := make([]uint16, 0, len(privileges))
	for k := range privileges {
		keys = append(keys, k)
	}
	for i := 0; i < len(keys); i++ {
		for j := i + 1; j < len(keys); j++ {
			if keys[j] < keys[i] {
				keys[i], keys[j] = keys[j], keys[i]
			}
		}
	}
	for _, k := range keys {
		packUint16(buf, k)
		packUint32(buf, privileges[k])
	}
}
