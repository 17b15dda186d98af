package file

import (
	"fmt"
	"io"
	"net/textproto"
	"os"
	"time"

	"github.com/jlaffaye/ftp"
)

const (
	//LocalFileStorage store files on the local filesystem
	LocalFileStorage = "local"
	//FTPFileStorage store files on a remote FTP server
	FTPFileStorage = "ftp"
)

//FileDescriptor locates a file on some FileStorage
type FileDescriptor struct {
	Store    FileStorage
	FileName string
	Encoding string
}

func (fd *FileDescriptor) String() string {
	return fd.FileName
}

//FileStorage abstract storage for work item lists and aggregate outputs
type FileStorage interface {
	Exists(fileName string) (ok bool, err error)
	Open(fileName, encoding string) (reader io.ReadCloser, err error)
	Create(fileName, encoding string) (writer io.WriteCloser, err error)
	Append(fileName, encoding string) (writer io.WriteCloser, err error)
}

//LocalFileSystem FileStorage backed by the local filesystem
type LocalFileSystem struct {
}

func (fs *LocalFileSystem) Exists(fileName string) (bool, error) {
	_, err := os.Stat(fileName)
	if err != nil && os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (fs *LocalFileSystem) Open(fileName, encoding string) (io.ReadCloser, error) {
	return os.Open(fileName)
}

func (fs *LocalFileSystem) Create(fileName, encoding string) (io.WriteCloser, error) {
	return os.Create(fileName)
}

func (fs *LocalFileSystem) Append(fileName, encoding string) (io.WriteCloser, error) {
	return os.OpenFile(fileName, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
}

//FTPFileSystem FileStorage backed by an FTP server. Every call opens a
//fresh connection and closes it when done.
type FTPFileSystem struct {
	Host        string
	Port        int
	User        string
	Password    string
	ConnTimeout time.Duration
}

func (fs *FTPFileSystem) connect() (*ftp.ServerConn, error) {
	c, err := ftp.DialTimeout(fmt.Sprintf("%s:%d", fs.Host, fs.Port), fs.ConnTimeout)
	if err != nil {
		return nil, err
	}
	err = c.Login(fs.User, fs.Password)
	if err != nil {
		c.Quit()
		return nil, err
	}
	return c, nil
}

func (fs *FTPFileSystem) Exists(fileName string) (bool, error) {
	c, err := fs.connect()
	if err != nil {
		return false, err
	}
	defer c.Quit()

	_, err = c.FileSize(fileName)
	if err == nil {
		return true, nil
	}
	if e, ok := err.(*textproto.Error); ok && e.Code == ftp.StatusFileUnavailable {
		return false, nil
	}
	return false, err
}

func (fs *FTPFileSystem) Open(fileName, encoding string) (io.ReadCloser, error) {
	c, err := fs.connect()
	if err != nil {
		return nil, err
	}
	r, err := c.Retr(fileName)
	if err != nil {
		c.Quit()
		return nil, err
	}
	return &ftpReader{r: r, conn: c}, nil
}

func (fs *FTPFileSystem) Create(fileName, encoding string) (io.WriteCloser, error) {
	return fs.store(fileName, false)
}

func (fs *FTPFileSystem) Append(fileName, encoding string) (io.WriteCloser, error) {
	return fs.store(fileName, true)
}

func (fs *FTPFileSystem) store(fileName string, appendMode bool) (io.WriteCloser, error) {
	c, err := fs.connect()
	if err != nil {
		return nil, err
	}
	r, w := io.Pipe()
	done := make(chan error, 1)
	go func() {
		var er error
		if appendMode {
			er = c.Append(fileName, r)
		} else {
			er = c.Stor(fileName, r)
		}
		r.CloseWithError(er)
		done <- er
		c.Quit()
	}()
	return &ftpWriter{w: w, done: done}, nil
}

type ftpReader struct {
	r    io.ReadCloser
	conn *ftp.ServerConn
}

func (f *ftpReader) Read(p []byte) (int, error) {
	return f.r.Read(p)
}

func (f *ftpReader) Close() error {
	err := f.r.Close()
	f.conn.Quit()
	return err
}

type ftpWriter struct {
	w    *io.PipeWriter
	done chan error
}

func (f *ftpWriter) Write(p []byte) (int, error) {
	return f.w.Write(p)
}

func (f *ftpWriter) Close() error {
	f.w.Close()
	return <-f.done
}
