package utils

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/rand"
	"os"
	"reflect"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

var (
	put32 = binary.LittleEndian.PutUint32
	put16 = binary.LittleEndian.PutUint16
	//EncBase64 wrapper for encoding to base64
	EncBase64 = base64.StdEncoding.EncodeToString
	//DecBase64 wrapper for decoding from base64
	DecBase64 = base64.StdEncoding.DecodeString
)

// CookieGen creates a 16byte UUID
func CookieGen() []byte {
	rand.Seed(time.Now().UnixNano())
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		fmt.Println("Error: ", err)
		return nil
	}
	return b
}

// DecodeUint32 decode 4 byte value into uint32
func DecodeUint32(num []byte) uint32 {
	var number uint32
	bf := bytes.NewReader(num)
	binary.Read(bf, binary.LittleEndian, &number)
	return number
}

// DecodeUint16 decode 2 byte value into uint16
func DecodeUint16(num []byte) uint16 {
	var number uint16
	bf := bytes.NewReader(num)
	binary.Read(bf, binary.LittleEndian, &number)
	return number
}

// DecodeUint8 decode 1 byte value into uint8
func DecodeUint8(num []byte) uint8 {
	var number uint8
	bf := bytes.NewReader(num)
	binary.Read(bf, binary.LittleEndian, &number)
	return number
}

// EncodeNum encode a number as a little-endian byte array
func EncodeNum(v interface{}) []byte {
	byteNum := new(bytes.Buffer)
	binary.Write(byteNum, binary.LittleEndian, v)
	return byteNum.Bytes()
}

// ReadUint32 read 4 bytes and return as uint32
func ReadUint32(pos int, buff []byte) (uint32, int) {
	return DecodeUint32(buff[pos : pos+4]), pos + 4
}

// ReadUint16 read 2 bytes and return as uint16
func ReadUint16(pos int, buff []byte) (uint16, int) {
	return DecodeUint16(buff[pos : pos+2]), pos + 2
}

// ReadUint8 read 1 byte and return as uint8
func ReadUint8(pos int, buff []byte) (uint8, int) {
	return DecodeUint8(buff[pos : pos+1]), pos + 1
}

// ReadBytes read and return count number of bytes
func ReadBytes(pos, count int, buff []byte) ([]byte, int) {
	return buff[pos : pos+count], pos + count
}

// ReadByte read and return a single byte
func ReadByte(pos int, buff []byte) (byte, int) {
	return buff[pos : pos+1][0], pos + 1
}

// ReadASCIIString returns a string as ascii
func ReadASCIIString(pos int, buff []byte) ([]byte, int) {
	bf := bytes.NewBuffer(buff[pos:])
	str, _ := bf.ReadString(0x00)
	return []byte(str), pos + len(str)
}

// BodyToBytes dumps a packet struct to its little-endian wire form
func BodyToBytes(DataStruct interface{}) []byte {
	dumped := []byte{}
	v := reflect.ValueOf(DataStruct)
	var value []byte

	//check if we have a slice of structs
	if reflect.TypeOf(DataStruct).Kind() == reflect.Slice {
		for i := 0; i < v.Len(); i++ {
			if isUint(v.Index(i).Kind()) {
				byteNum := new(bytes.Buffer)
				binary.Write(byteNum, binary.LittleEndian, v.Index(i).Interface())
				dumped = append(dumped, byteNum.Bytes()...)
			} else {
				if v.Index(i).Kind() == reflect.Struct || v.Index(i).Kind() == reflect.Slice || v.Index(i).Kind() == reflect.Interface {
					value = BodyToBytes(v.Index(i).Interface())
				} else {
					value = v.Index(i).Bytes()
				}
				dumped = append(dumped, value...)
			}
		}
	} else {
		for i := 0; i < v.NumField(); i++ {
			if isUint(v.Field(i).Kind()) {
				byteNum := new(bytes.Buffer)
				binary.Write(byteNum, binary.LittleEndian, v.Field(i).Interface())
				dumped = append(dumped, byteNum.Bytes()...)
			} else {
				if v.Field(i).Kind() == reflect.Struct || v.Field(i).Kind() == reflect.Slice || v.Field(i).Kind() == reflect.Interface {
					value = BodyToBytes(v.Field(i).Interface())
				} else {
					value = v.Field(i).Bytes()
				}
				dumped = append(dumped, value...)
			}
		}
	}
	return dumped
}

func isUint(k reflect.Kind) bool {
	return k == reflect.Uint8 || k == reflect.Uint16 || k == reflect.Uint32 || k == reflect.Uint64
}

// ReadYml reads the supplied config file and returns it unmarshalled into a YamlConfig.
func ReadYml(yml string) (YamlConfig, error) {
	var config YamlConfig
	data, err := os.ReadFile(yml)
	if err != nil {
		return YamlConfig{}, err
	}
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return YamlConfig{}, err
	}
	return config, err
}

// GUIDToByteArray mimics Guid.ToByteArray Method () from .NET
// The first three chunks are stored reversed, the final two as written.
// This matches the DCERPC wire layout of an interface UUID.
//
//	Guid: 35918bc9-196d-40ea-9779-889d79b753f0
//	C9 8B 91 35 6D 19 EA 40 97 79 88 9D 79 B7 53 F0
func GUIDToByteArray(guid string) (array []byte, err error) {
	//get rid of {} if passed in
	guid = strings.Replace(guid, "{", "", 1)
	guid = strings.Replace(guid, "}", "", 1)

	sp := strings.Split(guid, "-") //chunk
	//we should have 5 chunks
	if len(sp) != 5 {
		return nil, fmt.Errorf("Invalid GUID")
	}
	//add first 3 chunks to array in reverse order
	for i := 0; i < 3; i++ {
		chunk, e := hex.DecodeString(sp[i])
		if e != nil {
			return nil, e
		}
		for k := len(chunk) - 1; k >= 0; k-- {
			array = append(array, chunk[k])
		}
	}
	for i := 3; i < 5; i++ {
		chunk, e := hex.DecodeString(sp[i])
		if e != nil {
			return nil, e
		}
		array = append(array, chunk...)
	}
	return array, nil
}
