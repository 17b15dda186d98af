package util

import (
	"crypto/md5"
	"encoding/json"
	"fmt"
)

//JsonString generate json string for an object
func JsonString(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

//ParseJson parse json string to an object
func ParseJson(jsonStr string, v interface{}) error {
	return json.Unmarshal([]byte(jsonStr), v)
}

//MD5 calculate md5 for a string
func MD5(str string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(str)))
}
