package file

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"
	"io"
	"strings"
)

const (
	//OKFlag empty marker file with '.ok' suffix indicating the data file completed
	OKFlag = "OK"
	MD5    = "MD5"
	SHA1   = "SHA1"
	SHA256 = "SHA256"
	SHA512 = "SHA512"
)

//Checksumer generate and verify a check file alongside a data file
type Checksumer interface {
	Checksum(fd FileDescriptor) error
	Verify(fd FileDescriptor) (bool, error)
}

//GetChecksumer get Checksumer by algorithm name, nil if unknown
func GetChecksumer(alg string) Checksumer {
	switch strings.ToUpper(alg) {
	case OKFlag:
		return &okFlagChecksumer{}
	case MD5:
		return &digestChecksumer{alg: MD5, newHash: md5.New}
	case SHA1:
		return &digestChecksumer{alg: SHA1, newHash: sha1.New}
	case SHA256:
		return &digestChecksumer{alg: SHA256, newHash: sha256.New}
	case SHA512:
		return &digestChecksumer{alg: SHA512, newHash: sha512.New}
	}
	return nil
}

//okFlagChecksumer writes an empty '<file>.ok' marker once the data file is complete
type okFlagChecksumer struct {
}

func (ch *okFlagChecksumer) Checksum(fd FileDescriptor) error {
	w, err := fd.Store.Create(fd.FileName+".ok", fd.Encoding)
	if err != nil {
		return err
	}
	return w.Close()
}

func (ch *okFlagChecksumer) Verify(fd FileDescriptor) (bool, error) {
	ok, err := fd.Store.Exists(fd.FileName)
	if err != nil || !ok {
		return false, err
	}
	return fd.Store.Exists(fd.FileName + ".ok")
}

//digestChecksumer writes '<file>.<alg>' containing the hex digest of the data file
type digestChecksumer struct {
	alg     string
	newHash func() hash.Hash
}

func (ch *digestChecksumer) checkFileName(fd FileDescriptor) string {
	return fmt.Sprintf("%s.%s", fd.FileName, strings.ToLower(ch.alg))
}

func (ch *digestChecksumer) digest(fd FileDescriptor) (string, error) {
	reader, err := fd.Store.Open(fd.FileName, fd.Encoding)
	if err != nil {
		return "", err
	}
	defer reader.Close()
	h := ch.newHash()
	if _, err = io.Copy(h, reader); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

func (ch *digestChecksumer) Checksum(fd FileDescriptor) error {
	fileHash, err := ch.digest(fd)
	if err != nil {
		return err
	}
	w, err := fd.Store.Create(ch.checkFileName(fd), fd.Encoding)
	if err != nil {
		return err
	}
	defer w.Close()
	_, err = w.Write([]byte(fileHash))
	return err
}

func (ch *digestChecksumer) Verify(fd FileDescriptor) (bool, error) {
	ok, err := fd.Store.Exists(fd.FileName)
	if err != nil || !ok {
		return false, err
	}
	checkFile := ch.checkFileName(fd)
	ok, err = fd.Store.Exists(checkFile)
	if err != nil || !ok {
		return false, err
	}
	checkReader, err := fd.Store.Open(checkFile, fd.Encoding)
	if err != nil {
		return false, err
	}
	defer checkReader.Close()
	buf, err := io.ReadAll(checkReader)
	if err != nil {
		return false, err
	}
	fileHash, err := ch.digest(fd)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(string(buf)) == fileHash, nil
}
