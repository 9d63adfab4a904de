package rpchttp

import (
	"github.com/sensepost/tsgw/utils"
)

//RTSHeader common header of every RTS PDU on the virtual connection
type RTSHeader struct {
	Version          uint8 //05
	VersionMinor     uint8 //00
	Type             uint8
	PFCFlags         uint8
	PackedDrep       uint32
	FragLen          uint16
	AuthLen          uint16
	CallID           uint32
	Flags            uint16
	NumberOfCommands uint16
}

//Cookie an RTS cookie command carrying a 16 byte cookie
type Cookie struct {
	CommandType uint32 //always going to be 03
	Cookie      []byte //16 byte
}

//AssociationGroupID an RTS association group command
type AssociationGroupID struct {
	CommandType        uint32
	AssociationGroupID []byte //16 byte
}

//ChannelLifetime an RTS channel lifetime command
type ChannelLifetime struct {
	CommandType     uint32 //always 04
	ChannelLifetime uint32 //range of 128kb to 2 Gb
}

//ClientKeepalive an RTS keepalive command
type ClientKeepalive struct {
	CommandType     uint32 //always 05
	ClientKeepalive uint32 //milliseconds, 60s or more
}

//ReceiveWindowSize an RTS receive window size command
type ReceiveWindowSize struct {
	CommandType       uint32 //always 00
	ReceiveWindowSize uint32
}

//CONNA1 opens the out channel of the virtual connection
type CONNA1 struct {
	Header               RTSHeader
	Version              []byte //8 bytes
	VirtualConnectCookie Cookie
	OutChannelCookie     Cookie
	ReceiveWindowSize    ReceiveWindowSize
}

//CONNB1 opens the in channel of the virtual connection
type CONNB1 struct {
	Header               RTSHeader
	Version              []byte //8 bytes
	VirtualConnectCookie Cookie
	InChannelCookie      Cookie
	ChannelLifetime      ChannelLifetime
	ClientKeepalive      ClientKeepalive
	AssociationGroupID   AssociationGroupID
}

//RTSPing keeps the channel alive
type RTSPing struct {
	Header RTSHeader
}

func rtsHeader(flags uint16, numCommands uint16) RTSHeader {
	return RTSHeader{
		Version:          0x05,
		VersionMinor:     0,
		Type:             DCERPC_PKT_RTS,
		PFCFlags:         PFC_FIRST_FRAG | PFC_LAST_FRAG,
		PackedDrep:       16,
		CallID:           0,
		Flags:            flags,
		NumberOfCommands: numCommands,
	}
}

//ConnA1 builds the CONN/A1 PDU sent on the out channel. The virtual
//connect cookie must match the one sent in CONN/B1.
func ConnA1(virtualConnectCookie []byte) CONNA1 {
	conna1 := CONNA1{}
	conna1.Header = rtsHeader(RTS_FLAG_NONE, 4)
	conna1.Version = []byte{0x06, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00}
	conna1.VirtualConnectCookie = Cookie{RTS_CMD_COOKIE, virtualConnectCookie}
	conna1.OutChannelCookie = Cookie{RTS_CMD_COOKIE, utils.CookieGen()}
	conna1.ReceiveWindowSize = ReceiveWindowSize{RTS_CMD_RECEIVE_WINDOW_SIZE, 65536}
	conna1.Header.FragLen = uint16(len(conna1.Marshal()))
	return conna1
}

//ConnB1 builds the CONN/B1 PDU sent on the in channel
func ConnB1() CONNB1 {
	connb1 := CONNB1{}
	connb1.Header = rtsHeader(RTS_FLAG_NONE, 6)
	connb1.Version = []byte{0x06, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00}
	connb1.VirtualConnectCookie = Cookie{RTS_CMD_COOKIE, utils.CookieGen()}
	connb1.InChannelCookie = Cookie{RTS_CMD_COOKIE, utils.CookieGen()}
	connb1.ChannelLifetime = ChannelLifetime{RTS_CMD_CHANNEL_LIFETIME, 1073741824}
	connb1.ClientKeepalive = ClientKeepalive{RTS_CMD_CLIENT_KEEPALIVE, 300000}
	connb1.AssociationGroupID = AssociationGroupID{RTS_CMD_ASSOCIATION_GROUP_ID, utils.CookieGen()}
	connb1.Header.FragLen = uint16(len(connb1.Marshal()))
	return connb1
}

//Ping builds an RTS ping packet
func Ping() RTSPing {
	ping := RTSPing{}
	ping.Header = rtsHeader(RTS_FLAG_PING, 0)
	ping.Header.FragLen = 20
	return ping
}

//Marshal turn RTSPing into bytes
func (rtsPing RTSPing) Marshal() []byte {
	return utils.BodyToBytes(rtsPing)
}

//Marshal turn CONNA1 into bytes
func (connA1Request CONNA1) Marshal() []byte {
	return utils.BodyToBytes(connA1Request)
}

//Marshal turn CONNB1 into bytes
func (connB1Request CONNB1) Marshal() []byte {
	return utils.BodyToBytes(connB1Request)
}
